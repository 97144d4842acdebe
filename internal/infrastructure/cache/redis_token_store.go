package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/odoosync/internal/infrastructure/odoo"
)

// RedisTokenStore implements odoo.TokenStore using Redis.
// It lets several server instances share one Odoo token.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore creates a token store on an existing Redis client
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Get returns the stored value; found is false for a missing or expired key
func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	return value, true, nil
}

// Set stores the value with a TTL
func (s *RedisTokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Delete removes the key
func (s *RedisTokenStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Ensure RedisTokenStore implements odoo.TokenStore
var _ odoo.TokenStore = (*RedisTokenStore)(nil)
