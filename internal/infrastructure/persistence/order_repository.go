package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements ordersync.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

var (
	_ ordersync.OrderRepository  = (*GormOrderRepository)(nil)
	_ ordersync.StockLevelWriter = (*GormOrderRepository)(nil)
)

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID loads an order with its items and fees
func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*ordersync.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Fees", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ordersync.ErrOrderNotFound, id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveSyncMetadata writes the three sync columns together
func (r *GormOrderRepository) SaveSyncMetadata(ctx context.Context, id int64, meta ordersync.SyncMetadata) error {
	return r.updateOrder(ctx, id, map[string]any{
		"erp_order_id":     meta.ERPOrderID,
		"erp_order_number": meta.ERPOrderNumber,
		"sync_status":      string(meta.Status),
	})
}

// SetSyncStatus writes only the status column
func (r *GormOrderRepository) SetSyncStatus(ctx context.Context, id int64, status ordersync.SyncStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid sync status %q", status)
	}
	return r.updateOrder(ctx, id, map[string]any{"sync_status": string(status)})
}

func (r *GormOrderRepository) updateOrder(ctx context.Context, id int64, values map[string]any) error {
	values["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ordersync.ErrOrderNotFound, id)
	}
	return nil
}

// AddNote appends a private note
func (r *GormOrderRepository) AddNote(ctx context.Context, id int64, note string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %d", ordersync.ErrOrderNotFound, id)
	}
	return r.db.WithContext(ctx).Create(&models.OrderNoteModel{OrderID: id, Note: note}).Error
}

// Notes returns the notes of an order, oldest first
func (r *GormOrderRepository) Notes(ctx context.Context, id int64) ([]string, error) {
	var notes []string
	err := r.db.WithContext(ctx).
		Model(&models.OrderNoteModel{}).
		Where("order_id = ?", id).
		Order("id ASC").
		Pluck("note", &notes).Error
	return notes, err
}

// ListFailed returns ids with sync_status=failed, least recently updated first
func (r *GormOrderRepository) ListFailed(ctx context.Context, limit int) ([]int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("sync_status = ?", string(ordersync.SyncStatusFailed)).
		Order("updated_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []int64
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountFailed returns the size of the failed orders queue
func (r *GormOrderRepository) CountFailed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("sync_status = ?", string(ordersync.SyncStatusFailed)).
		Count(&count).Error
	return count, err
}

// UpdateStock upserts the storefront stock level of a SKU
func (r *GormOrderRepository) UpdateStock(ctx context.Context, sku string, quantity float64) error {
	row := models.ProductStockModel{SKU: sku, Quantity: quantity, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&row).Error
}

// StockLevel returns the stored quantity of a SKU
func (r *GormOrderRepository) StockLevel(ctx context.Context, sku string) (float64, error) {
	var row models.ProductStockModel
	if err := r.db.WithContext(ctx).First(&row, "sku = ?", sku).Error; err != nil {
		return 0, err
	}
	return row.Quantity, nil
}
