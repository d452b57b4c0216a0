package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"myGreenStorefront/business/personalization"
	"myGreenStorefront/domain"
)

// Catalog is a fixed product list.
type Catalog struct {
	mu       sync.RWMutex
	products []domain.Product
}

var _ personalization.Catalog = (*Catalog)(nil)

func NewCatalog(products []domain.Product) *Catalog {
	c := &Catalog{}
	c.Replace(products)
	return c
}

// LoadCatalogFile reads a JSON array of products.
func LoadCatalogFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var products []domain.Product
	if err := json.Unmarshal(b, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewCatalog(products), nil
}

// Replace swaps the product list.
func (c *Catalog) Replace(products []domain.Product) {
	cp := make([]domain.Product, len(products))
	copy(cp, products)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = cp
}

func (c *Catalog) FindAll(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

func (c *Catalog) FindByID(ctx context.Context, id uint64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("context error: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}
