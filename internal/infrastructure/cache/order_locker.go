package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// orderLockPrefix prefixes per-order lock keys
const orderLockPrefix = "odoosync:order-lock:"

// InMemoryOrderLocker implements ordersync.OrderLocker for a single process
type InMemoryOrderLocker struct {
	mu    sync.Mutex
	locks map[int64]time.Time
	now   func() time.Time
}

// NewInMemoryOrderLocker creates a new in-memory order locker
func NewInMemoryOrderLocker() *InMemoryOrderLocker {
	return &InMemoryOrderLocker{
		locks: make(map[int64]time.Time),
		now:   time.Now,
	}
}

// TryLock acquires the lock unless it is held and not yet expired
func (l *InMemoryOrderLocker) TryLock(_ context.Context, orderID int64, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.locks[orderID]; held && now.Before(expiresAt) {
		return false, nil
	}
	l.locks[orderID] = now.Add(ttl)
	return true, nil
}

// Unlock releases the lock
func (l *InMemoryOrderLocker) Unlock(_ context.Context, orderID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, orderID)
	return nil
}

// RedisOrderLocker implements ordersync.OrderLocker with SETNX so the lock
// holds across server instances. The TTL releases locks of crashed holders.
type RedisOrderLocker struct {
	client *redis.Client
}

// NewRedisOrderLocker creates a locker on an existing Redis client
func NewRedisOrderLocker(client *redis.Client) *RedisOrderLocker {
	return &RedisOrderLocker{client: client}
}

// TryLock sets the lock key if it does not exist
func (l *RedisOrderLocker) TryLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(orderID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	return ok, nil
}

// Unlock deletes the lock key
func (l *RedisOrderLocker) Unlock(ctx context.Context, orderID int64) error {
	if err := l.client.Del(ctx, lockKey(orderID)).Err(); err != nil {
		return fmt.Errorf("failed to release order lock: %w", err)
	}
	return nil
}

func lockKey(orderID int64) string {
	return orderLockPrefix + strconv.FormatInt(orderID, 10)
}

var (
	_ ordersync.OrderLocker = (*InMemoryOrderLocker)(nil)
	_ ordersync.OrderLocker = (*RedisOrderLocker)(nil)
)
