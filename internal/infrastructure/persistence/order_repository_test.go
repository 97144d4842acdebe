package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/config"
	"github.com/erp/odoosync/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), &config.DatabaseConfig{MaxOpenConns: 1, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.AutoMigrate(
		&models.OrderModel{},
		&models.OrderItemModel{},
		&models.OrderFeeModel{},
		&models.OrderNoteModel{},
		&models.ProductStockModel{},
	))
	return db.DB
}

func seedOrder(t *testing.T, db *gorm.DB, m models.OrderModel) {
	t.Helper()
	require.NoError(t, db.Create(&m).Error)
}

func TestGormOrderRepository_FindByID(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	seedOrder(t, db, models.OrderModel{
		ID:               9,
		Status:           "wc-cancelled",
		BillingFirstName: "Sara",
		BillingCountry:   "SA",
		ShortAddress:     "RRRD2929",
		Total:            decimal.RequireFromString("240.5"),
		CartDiscountMeta: `["120.50","120.50"]`,
		PaymentMethod:    "cod",
		VATExempt:        true,
		ERPOrderID:       555,
		ERPOrderNumber:   "SO555",
		SyncStatus:       "success",
		CreatedAt:        created,
		Items: []models.OrderItemModel{
			{Position: 2, SKU: "B", Name: "Second", Quantity: 1, Price: decimal.NewFromInt(10)},
			{
				Position: 1, SKU: "A", Name: "First", Quantity: 2, Price: decimal.RequireFromString("12.5"),
				IsVariant: true, StockMultiplier: 6,
				AddOns: `[{"kind":"product","label":"Gift","items":[{"sku":"G1","name":"Card","quantity":1}]}]`,
			},
		},
		Fees: []models.OrderFeeModel{{Name: "COD", Total: decimal.NewFromInt(15)}},
	})

	order, err := repo.FindByID(ctx, 9)
	require.NoError(t, err)

	assert.Equal(t, ordersync.OrderStatusCancelled, order.Status)
	assert.Equal(t, "Sara", order.Billing.FirstName)
	assert.Equal(t, "RRRD2929", order.Billing.ShortAddress)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("240.5")))
	assert.True(t, order.VATExempt)
	assert.Equal(t, ordersync.SyncMetadata{ERPOrderID: 555, ERPOrderNumber: "SO555", Status: ordersync.SyncStatusSuccess}, order.Sync)

	discount, ok := order.CartDiscountMeta.FirstPositive()
	require.True(t, ok)
	assert.Equal(t, "120.5", discount.String())

	require.Len(t, order.Items, 2)
	assert.Equal(t, "A", order.Items[0].SKU)
	assert.Equal(t, 6.0, order.Items[0].EffectiveMultiplier())
	require.Len(t, order.Items[0].AddOns, 1)
	assert.Equal(t, ordersync.AddOnKindProduct, order.Items[0].AddOns[0].Kind)
	assert.Equal(t, "G1", order.Items[0].AddOns[0].Items[0].SKU)
	assert.Empty(t, order.Items[1].AddOns)

	require.Len(t, order.Fees, 1)
	assert.Equal(t, "COD", order.Fees[0].Name)
}

func TestGormOrderRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormOrderRepository(setupOrderTestDB(t))
	_, err := repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, ordersync.ErrOrderNotFound)
}

func TestGormOrderRepository_MalformedJSONIsIgnored(t *testing.T) {
	db := setupOrderTestDB(t)
	seedOrder(t, db, models.OrderModel{
		ID:               3,
		Status:           "processing",
		CartDiscountMeta: `{not json`,
		Items:            []models.OrderItemModel{{SKU: "A", Quantity: 1, Price: decimal.NewFromInt(1), AddOns: "a:1:{}"}},
	})

	order, err := NewGormOrderRepository(db).FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, order.CartDiscountMeta)
	assert.Empty(t, order.Items[0].AddOns)
}

func TestGormOrderRepository_SyncMetadata(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	seedOrder(t, db, models.OrderModel{ID: 101, Status: "processing"})

	require.NoError(t, repo.SaveSyncMetadata(ctx, 101, ordersync.SyncMetadata{
		ERPOrderID: 555, ERPOrderNumber: "SO555", Status: ordersync.SyncStatusSuccess,
	}))
	require.NoError(t, repo.SetSyncStatus(ctx, 101, ordersync.SyncStatusFailed))

	order, err := repo.FindByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(555), order.Sync.ERPOrderID)
	assert.Equal(t, "SO555", order.Sync.ERPOrderNumber)
	assert.Equal(t, ordersync.SyncStatusFailed, order.Sync.Status)

	err = repo.SaveSyncMetadata(ctx, 999, ordersync.SyncMetadata{Status: ordersync.SyncStatusFailed})
	assert.ErrorIs(t, err, ordersync.ErrOrderNotFound)

	err = repo.SetSyncStatus(ctx, 101, "maybe")
	assert.Error(t, err)
}

func TestGormOrderRepository_Notes(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	seedOrder(t, db, models.OrderModel{ID: 102, Status: "processing"})

	require.NoError(t, repo.AddNote(ctx, 102, "first"))
	require.NoError(t, repo.AddNote(ctx, 102, "bad SKU"))

	notes, err := repo.Notes(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "bad SKU"}, notes)

	assert.ErrorIs(t, repo.AddNote(ctx, 5, "x"), ordersync.ErrOrderNotFound)
}

func TestGormOrderRepository_FailedQueue(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedOrder(t, db, models.OrderModel{ID: 1, Status: "processing", SyncStatus: "failed", UpdatedAt: base.Add(2 * time.Hour)})
	seedOrder(t, db, models.OrderModel{ID: 2, Status: "processing", SyncStatus: "success", UpdatedAt: base})
	seedOrder(t, db, models.OrderModel{ID: 3, Status: "processing", SyncStatus: "failed", UpdatedAt: base})
	seedOrder(t, db, models.OrderModel{ID: 4, Status: "processing", SyncStatus: "failed", UpdatedAt: base.Add(time.Hour)})

	ids, err := repo.ListFailed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 1}, ids)

	ids, err = repo.ListFailed(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids)

	count, err := repo.CountFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGormOrderRepository_UpdateStock(t *testing.T) {
	repo := NewGormOrderRepository(setupOrderTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpdateStock(ctx, "SKU-1", 12))
	require.NoError(t, repo.UpdateStock(ctx, "SKU-1", 3.5))

	qty, err := repo.StockLevel(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, 3.5, qty)
}
