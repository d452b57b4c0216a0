// Package memory keeps personalization state and the catalog in process
// memory. It backs tests and the development server.
package memory

import (
	"context"
	"fmt"
	"sync"

	"myGreenStorefront/business/personalization"
)

// Store is a concurrency-safe string map.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ personalization.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("context error: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Provider hands out one Store per scope, created on first use.
type Provider struct {
	mu     sync.Mutex
	scopes map[string]*Store
}

var _ personalization.StoreProvider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{scopes: make(map[string]*Store)}
}

func (p *Provider) ForScope(scope string) personalization.Store {
	return p.Scope(scope)
}

// Scope returns the concrete store of scope.
func (p *Provider) Scope(scope string) *Store {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.scopes[scope]
	if !ok {
		st = NewStore()
		p.scopes[scope] = st
	}
	return st
}
