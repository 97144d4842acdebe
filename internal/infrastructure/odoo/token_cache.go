package odoo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// TokenCacheKey is the fixed store key of the shared auth token
const TokenCacheKey = "odoo:auth:token"

// authRetries is how many extra auth attempts follow a transport failure
const authRetries = 2

// TokenStore is the shared storage behind TokenCache.
// Get reports found=false for a missing or expired key.
type TokenStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Authenticator obtains a fresh token from Odoo
type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// TokenCache hands out Odoo tokens, authenticating only when the cached
// token is missing or expired. Concurrent refreshes are tolerated: the last
// writer wins and every refreshed token is valid.
type TokenCache struct {
	auth   Authenticator
	store  TokenStore
	ttl    time.Duration
	retry  ordersync.RetryPolicy
	logger *zap.Logger
}

var _ ordersync.TokenProvider = (*TokenCache)(nil)

// TokenCacheOption configures a TokenCache
type TokenCacheOption func(*TokenCache)

// WithTokenTTL overrides the token lifetime
func WithTokenTTL(ttl time.Duration) TokenCacheOption {
	return func(c *TokenCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithAuthRetryPolicy overrides the backoff used between auth attempts
func WithAuthRetryPolicy(p ordersync.RetryPolicy) TokenCacheOption {
	return func(c *TokenCache) {
		c.retry = p
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger *zap.Logger) TokenCacheOption {
	return func(c *TokenCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewTokenCache creates a token cache backed by store
func NewTokenCache(auth Authenticator, store TokenStore, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		auth:   auth,
		store:  store,
		ttl:    DefaultTokenTTL,
		retry:  ordersync.DefaultRetryPolicy(authRetries),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token or authenticates for a new one.
// Transport failures are retried twice with backoff; after that, or on a
// rejected login, the error wraps ordersync.ErrAuthFailed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	token, found, err := c.store.Get(ctx, TokenCacheKey)
	if err != nil {
		c.logger.Warn("token store read failed", zap.Error(err))
	} else if found && token != "" {
		return token, nil
	}

	var lastErr error
	for attempt := 0; attempt <= authRetries; attempt++ {
		if attempt > 0 {
			if err := c.retry.Wait(ctx, attempt-1); err != nil {
				return "", fmt.Errorf("%w: %v", ordersync.ErrAuthFailed, err)
			}
		}

		token, err := c.auth.Authenticate(ctx)
		if err == nil {
			if err := c.store.Set(ctx, TokenCacheKey, token, c.ttl); err != nil {
				c.logger.Warn("token store write failed", zap.Error(err))
			}
			return token, nil
		}

		lastErr = err
		if !errors.Is(err, ordersync.ErrTransport) {
			break
		}
		c.logger.Warn("odoo authentication attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	if errors.Is(lastErr, ordersync.ErrAuthFailed) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %v", ordersync.ErrAuthFailed, lastErr)
}

// Clear drops the cached token so the next call re-authenticates
func (c *TokenCache) Clear(ctx context.Context) error {
	return c.store.Delete(ctx, TokenCacheKey)
}
