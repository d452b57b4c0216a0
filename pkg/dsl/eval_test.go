package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Eval(t *testing.T) {
	product := map[string]any{
		"quantity":         3.0,
		"sale_price":       12500.0,
		"product_category": "vegetables",
		"is_green_tag":     true,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`product.quantity > 0.0`, true},
		{`product.quantity > 0.0 && product.sale_price > 20000.0`, false},
		{`product.product_category in ["vegetables", "fruits"]`, true},
		{`product.is_green_tag`, true},
		{`!product.is_green_tag || product.quantity > 5.0`, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := rule.Eval(map[string]any{"product": product})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(`product.quantity >`)
	assert.Error(t, err)

	_, err = Compile(`1 + 2`)
	assert.Error(t, err)
}

func TestRule_EvalNonBool(t *testing.T) {
	rule, err := Compile(`product.product_category`)
	require.NoError(t, err)

	_, err = rule.Eval(map[string]any{"product": map[string]any{"product_category": "x"}})
	assert.Error(t, err)
}
