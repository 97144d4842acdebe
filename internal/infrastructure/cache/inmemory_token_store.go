package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/odoosync/internal/infrastructure/odoo"
)

// entry is a stored value with expiration
type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryTokenStore implements odoo.TokenStore using an in-memory map.
// It is suitable for single-instance deployments and testing.
type InMemoryTokenStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewInMemoryTokenStore creates a new in-memory token store
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the stored value; found is false for a missing or expired key
func (s *InMemoryTokenStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores the value; a non-positive ttl never expires
func (s *InMemoryTokenStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Delete removes the key
func (s *InMemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Ensure InMemoryTokenStore implements odoo.TokenStore
var _ odoo.TokenStore = (*InMemoryTokenStore)(nil)
