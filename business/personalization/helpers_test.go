package personalization_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"myGreenStorefront/business/personalization"
	"myGreenStorefront/domain"
	"myGreenStorefront/internal/repository/memory"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc   *personalization.Service
	store *memory.Store
	clock *fakeClock
}

func newFixture(t *testing.T, opts ...personalization.Option) *fixture {
	t.Helper()

	clock := &fakeClock{t: baseTime}
	store := memory.NewStore()
	all := append([]personalization.Option{
		personalization.WithClock(clock.Now),
		personalization.WithRand(rand.New(rand.NewPCG(7, 11))),
	}, opts...)

	return &fixture{
		svc:   personalization.NewService(store, all...),
		store: store,
		clock: clock,
	}
}

func viewProduct(t *testing.T, svc *personalization.Service, id uint64) {
	t.Helper()
	ok := svc.RecordEvent(context.Background(),
		fmt.Sprintf("/products/%d", id),
		domain.PageTypeProduct,
		map[string]any{domain.MetaProductID: fmt.Sprintf("%d", id)},
	)
	if !ok {
		t.Fatalf("RecordEvent(product %d) returned false", id)
	}
}

func product(id uint64, category string) domain.Product {
	return domain.Product{
		ID:              id,
		ProductName:     fmt.Sprintf("product-%d", id),
		ProductCategory: category,
		Quantity:        10,
		NormalPrice:     10000,
		SalePrice:       9000,
	}
}

func catalog(n int) []domain.Product {
	out := make([]domain.Product, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, product(uint64(i), "general"))
	}
	return out
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("storage unavailable")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errBoom }
func (failingStore) Set(context.Context, string, string) error         { return errBoom }
func (failingStore) Delete(context.Context, string) error              { return errBoom }

// panickingChecker panics on every eligibility check.
type panickingChecker struct{}

func (panickingChecker) IsEligible(context.Context, domain.Product) (bool, error) {
	panic("checker exploded")
}

// panickingStore panics on every read and write.
type panickingStore struct{}

func (panickingStore) Get(context.Context, string) (string, bool, error) { panic("store exploded") }
func (panickingStore) Set(context.Context, string, string) error         { panic("store exploded") }
func (panickingStore) Delete(context.Context, string) error              { panic("store exploded") }
