package ordersync

import (
	"context"
	"time"
)

// OrderRepository is the storefront order store as seen by the sync engine
type OrderRepository interface {
	// FindByID returns ErrOrderNotFound when the order does not exist
	FindByID(ctx context.Context, id int64) (*Order, error)

	// SaveSyncMetadata persists ERP id, number and status together
	SaveSyncMetadata(ctx context.Context, id int64, meta SyncMetadata) error

	// SetSyncStatus persists only the status, leaving the ERP id untouched
	SetSyncStatus(ctx context.Context, id int64, status SyncStatus) error

	// AddNote appends a private note to the order
	AddNote(ctx context.Context, id int64, note string) error

	// ListFailed returns the ids of orders whose last sync failed, oldest first
	ListFailed(ctx context.Context, limit int) ([]int64, error)
}

// StockLevelWriter stores storefront stock levels
type StockLevelWriter interface {
	UpdateStock(ctx context.Context, sku string, quantity float64) error
}

// ActivityRecorder is the write side of the activity log
type ActivityRecorder interface {
	Append(ctx context.Context, entry ActivityEntry) error
}

// OrderLocker is an advisory per-order lock held for the duration of a sync
// pass. TryLock returns false when another caller holds the lock.
type OrderLocker interface {
	TryLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, orderID int64) error
}
