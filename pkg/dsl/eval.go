// Package dsl compiles boolean CEL (Common Expression Language) rules used to
// filter catalog items, e.g.
//
//	product.quantity > 0 && product.sale_price > 0
//	product.product_category in ["vegetables", "fruits"]
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// env returns the shared CEL environment. It is safe for concurrent use.
func env() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("product", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Rule is a compiled boolean expression.
type Rule struct {
	expr string
	prg  cel.Program
}

// Compile parses and type-checks expr once so it can be evaluated many times.
func Compile(expr string) (*Rule, error) {
	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}

	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %s", out)
	}

	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

func (r *Rule) String() string { return r.expr }

// Eval runs the rule against the given variables.
func (r *Rule) Eval(vars map[string]any) (bool, error) {
	out, _, err := r.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}
