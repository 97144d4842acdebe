package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/config"
	"github.com/erp/odoosync/internal/infrastructure/odoo"
)

// Stores bundles the shared-state backends used by the sync engine
type Stores struct {
	Tokens odoo.TokenStore
	Locker ordersync.OrderLocker
	// Redis is nil when the in-memory backends are in use
	Redis *redis.Client
}

// Close releases the Redis connection, if any
func (s *Stores) Close() error {
	if s.Redis != nil {
		return s.Redis.Close()
	}
	return nil
}

// StoreFactory creates token stores and order lockers based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateInMemoryStores creates process-local backends.
// WARNING: they do not share the token or order locks across instances.
func (f *StoreFactory) CreateInMemoryStores() *Stores {
	return &Stores{
		Tokens: NewInMemoryTokenStore(),
		Locker: NewInMemoryOrderLocker(),
	}
}

// CreateStores uses Redis when it is enabled and reachable, and otherwise
// falls back to in-memory backends if fallback is allowed
func (f *StoreFactory) CreateStores() (*Stores, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory token store and order locks")
		return f.CreateInMemoryStores(), nil
	}

	client, err := NewRedisClient(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis token store and order locks")
		return &Stores{
			Tokens: NewRedisTokenStore(client),
			Locker: NewRedisOrderLocker(client),
			Redis:  client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Instances will authenticate separately and order locks are process-local.",
		zap.Error(err),
	)
	return f.CreateInMemoryStores(), nil
}
