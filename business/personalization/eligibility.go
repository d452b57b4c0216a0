package personalization

import (
	"context"
	"fmt"
	"strings"

	"myGreenStorefront/domain"
	"myGreenStorefront/pkg/dsl"
)

// EligibilityChecker decides if a catalog product may be recommended at all
// (stock, visibility, campaign rules).
type EligibilityChecker interface {
	IsEligible(ctx context.Context, product domain.Product) (bool, error)
}

// NoopEligibilityChecker is the default implementation that allows everything.
type NoopEligibilityChecker struct{}

func (NoopEligibilityChecker) IsEligible(ctx context.Context, product domain.Product) (bool, error) {
	return true, nil
}

// RuleEligibilityChecker evaluates a CEL rule against every product. Fields
// are addressed by their json names, e.g. `product.quantity > 0.0`.
type RuleEligibilityChecker struct {
	rule *dsl.Rule
}

var _ EligibilityChecker = (*RuleEligibilityChecker)(nil)

// NewEligibilityChecker compiles expr. An empty expression yields the noop checker.
func NewEligibilityChecker(expr string) (EligibilityChecker, error) {
	if strings.TrimSpace(expr) == "" {
		return NoopEligibilityChecker{}, nil
	}
	rule, err := dsl.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile eligibility rule: %w", err)
	}
	return &RuleEligibilityChecker{rule: rule}, nil
}

func (c *RuleEligibilityChecker) IsEligible(ctx context.Context, product domain.Product) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}
	return c.rule.Eval(map[string]any{"product": productVars(product)})
}

func productVars(p domain.Product) map[string]any {
	return map[string]any{
		"id":               p.Key(),
		"product_id":       p.ProductID,
		"product_skuid":    p.ProductSKUID,
		"category_id":      p.CategoryID,
		"is_green_tag":     p.IsGreenTag,
		"product_name":     p.ProductName,
		"product_category": p.ProductCategory,
		"unit":             p.Unit,
		"normal_price":     p.NormalPrice,
		"sale_price":       p.SalePrice,
		"discount":         p.Discount,
		"quantity":         p.Quantity,
	}
}
