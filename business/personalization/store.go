package personalization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"myGreenStorefront/domain"
)

// Storage keys. Names and JSON shapes are shared with the storefront client,
// do not rename.
const (
	KeyBrowsingHistory = "user_browsing_history"
	KeyProductViews    = "product_view_count"
	KeyCategoryPrefs   = "category_preferences"
	KeySearchHistory   = "search_history"
	KeyProfile         = "personalization_profile"
	KeyFeedback        = "recommendation_feedback"
	KeyMetrics         = "personalization_metrics"
	KeySettings        = "personalization_settings"
)

// AllKeys lists every key owned by the engine, in the order they are purged.
var AllKeys = []string{
	KeyBrowsingHistory,
	KeyProductViews,
	KeyCategoryPrefs,
	KeySearchHistory,
	KeyProfile,
	KeyFeedback,
	KeyMetrics,
	KeySettings,
}

// Store is a string key-value store scoped to a single browser session.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StoreProvider hands out the Store of a scope (session id).
type StoreProvider interface {
	ForScope(scope string) Store
}

// StoreProviderFunc adapts a function to StoreProvider.
type StoreProviderFunc func(scope string) Store

func (f StoreProviderFunc) ForScope(scope string) Store { return f(scope) }

// SingleStore serves the same Store for every scope.
func SingleStore(store Store) StoreProvider {
	return StoreProviderFunc(func(string) Store { return store })
}

// schemaName and schemaVersion are written into every envelope.
const (
	schemaName    = "personalization"
	schemaVersion = 1
)

// envelope wraps every stored value. Schema tells it apart from a bare legacy
// object that happens to carry "version" and "data" keys.
type envelope struct {
	Schema  string          `json:"schema"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// readValue decodes key into dst. It returns false when the key is absent.
// Both the versioned envelope and the bare legacy shape are accepted. dst is
// only assigned when the whole value decodes.
func readValue(ctx context.Context, store Store, key string, dst any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}

	payload := []byte(raw)
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Schema == schemaName {
		if env.Version > schemaVersion {
			return false, fmt.Errorf("%w: %s has schema version %d", ErrCorruptValue, key, env.Version)
		}
		payload = env.Data
	}

	if err := decodeInto(payload, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptValue, key, err)
	}
	return true, nil
}

// decodeInto unmarshals data into a fresh value of dst's type and copies it
// over dst on success, so a failed decode leaves dst untouched.
func decodeInto(data []byte, dst any) error {
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", dst)
	}

	fresh := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return err
	}
	target.Elem().Set(fresh.Elem())
	return nil
}

// writeValue encodes v inside a versioned envelope and stores it under key.
func writeValue(ctx context.Context, store Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{Schema: schemaName, Version: schemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", key, err)
	}
	if err := store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// loadOrReset reads key into dst. A corrupted value is logged and treated as
// absent so the aggregate starts over instead of blocking every later write.
func (s *Service) loadOrReset(ctx context.Context, key string, dst any) error {
	_, err := readValue(ctx, s.store, key, dst)
	if isCorrupt(err) {
		s.warn("discarding corrupted value", err, "key", key)
		return nil
	}
	return err
}

func isCorrupt(err error) bool {
	return err != nil && errors.Is(err, ErrCorruptValue)
}

// Catalog supplies the products that can be recommended.
type Catalog interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
	FindByID(ctx context.Context, id uint64) (domain.Product, error)
}
