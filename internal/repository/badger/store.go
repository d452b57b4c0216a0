// Package badger keeps personalization state in an embedded BadgerDB, used
// by the operator CLI.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"myGreenStorefront/business/personalization"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "personalization:"

// Open opens (or creates) a BadgerDB in dir with badger logging disabled.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}
	return db, nil
}

// Provider maps each scope onto the key prefix "personalization:{scope}:".
type Provider struct {
	db *badger.DB
}

var _ personalization.StoreProvider = (*Provider)(nil)

func NewProvider(db *badger.DB) *Provider {
	return &Provider{db: db}
}

func (p *Provider) ForScope(scope string) personalization.Store {
	return &Store{db: p.db, prefix: keyPrefix + scope + ":"}
}

// Scopes lists every scope holding at least one key, sorted.
func (p *Provider) Scopes(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}

	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			if i := strings.LastIndex(rest, ":"); i > 0 {
				seen[rest[:i]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	scopes := make([]string, 0, len(seen))
	for s := range seen {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes, nil
}

// Store is one scope's view of the database.
type Store struct {
	db     *badger.DB
	prefix string
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.prefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		found = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(s.prefix+key), []byte(value)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(s.prefix + key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}
