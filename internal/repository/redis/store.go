package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"myGreenStorefront/business/personalization"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "personalization"

// Store keeps one scope's personalization keys in Redis.
type Store struct {
	client *redis.Client
	scope  string
	ttl    time.Duration
}

var _ personalization.Store = (*Store)(nil)

func NewStore(client *redis.Client, scope string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		scope:  scope,
		ttl:    ttl,
	}
}

// key format: "personalization:{scope}:{key}"
func (s *Store) redisKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.scope, key)
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return val, true, nil
}

// Set writes value. With a TTL configured, every key of the scope gets its
// expiry restarted so the session ages out as a whole.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.ttl <= 0 {
		if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
			return fmt.Errorf("failed to store %s in Redis: %w", key, err)
		}
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.redisKey(key), value, s.ttl)
		for _, k := range personalization.AllKeys {
			if k != key {
				pipe.Expire(ctx, s.redisKey(k), s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s in Redis: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from Redis: %w", key, err)
	}
	return nil
}

// Provider shares one client across every scope.
type Provider struct {
	client *redis.Client
	ttl    time.Duration
}

var _ personalization.StoreProvider = (*Provider)(nil)

// NewProvider returns a provider whose keys expire ttl after their last
// write. A zero ttl keeps keys forever.
func NewProvider(client *redis.Client, ttl time.Duration) *Provider {
	return &Provider{
		client: client,
		ttl:    ttl,
	}
}

func (p *Provider) ForScope(scope string) personalization.Store {
	return NewStore(p.client, scope, p.ttl)
}
