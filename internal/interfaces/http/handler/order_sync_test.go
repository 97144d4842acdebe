package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appsync "github.com/erp/odoosync/internal/application/ordersync"
	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/interfaces/http/dto"
)

type orderSyncFixture struct {
	sync   *MockOrderSyncService
	failed *MockFailedOrderQueue
	stock  *MockStockService
}

func newOrderSyncFixture() (*orderSyncFixture, *OrderSyncHandler) {
	f := &orderSyncFixture{
		sync:   new(MockOrderSyncService),
		failed: new(MockFailedOrderQueue),
		stock:  new(MockStockService),
	}
	return f, NewOrderSyncHandler(f.sync, f.failed, f.stock)
}

func TestOrderSyncHandler_SyncOrders(t *testing.T) {
	f, h := newOrderSyncFixture()
	engine := newEngine(h)

	result := appsync.BatchResult{
		Success:      false,
		Message:      "1 of 2 orders failed",
		ProcessedIDs: []int64{1},
		FailedIDs:    []int64{2},
	}
	f.sync.On("SendOrders", mock.Anything, appsync.SyncRequest{
		OrderIDs:    []int64{1, 2},
		Update:      true,
		LogActivity: true,
	}).Return(result)

	w := serve(engine, http.MethodPost, "/api/v1/orders/sync", strings.NewReader(`{"order_ids":[1,2],"update":true}`))

	assert.Equal(t, http.StatusOK, w.Code)
	var got appsync.BatchResult
	decodeData(t, w, &got)
	assert.Equal(t, []int64{1}, got.ProcessedIDs)
	assert.Equal(t, []int64{2}, got.FailedIDs)
	assert.False(t, got.Success)
	f.sync.AssertExpectations(t)
}

func TestOrderSyncHandler_SyncOrders_LogActivityOptOut(t *testing.T) {
	f, h := newOrderSyncFixture()
	engine := newEngine(h)

	f.sync.On("SendOrders", mock.Anything, mock.MatchedBy(func(req appsync.SyncRequest) bool {
		return !req.LogActivity
	})).Return(appsync.BatchResult{Success: true})

	w := serve(engine, http.MethodPost, "/api/v1/orders/sync", strings.NewReader(`{"order_ids":[5],"log_activity":false}`))
	assert.Equal(t, http.StatusOK, w.Code)
	f.sync.AssertExpectations(t)
}

func TestOrderSyncHandler_SyncOrders_ConfiguredDefault(t *testing.T) {
	f, _ := newOrderSyncFixture()
	h := NewOrderSyncHandler(f.sync, f.failed, f.stock, WithActivityLoggingDefault(false))
	engine := newEngine(h)

	f.sync.On("SendOrders", mock.Anything, appsync.SyncRequest{OrderIDs: []int64{7}}).
		Return(appsync.BatchResult{Success: true}).Once()
	f.sync.On("SendOrders", mock.Anything, appsync.SyncRequest{OrderIDs: []int64{8}, LogActivity: true}).
		Return(appsync.BatchResult{Success: true}).Once()

	w := serve(engine, http.MethodPost, "/api/v1/orders/sync", strings.NewReader(`{"order_ids":[7]}`))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(engine, http.MethodPost, "/api/v1/orders/sync", strings.NewReader(`{"order_ids":[8],"log_activity":true}`))
	assert.Equal(t, http.StatusOK, w.Code)
	f.sync.AssertExpectations(t)
}

func TestOrderSyncHandler_SyncOrders_Validation(t *testing.T) {
	_, h := newOrderSyncFixture()
	engine := newEngine(h)

	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprint(i + 1)
	}

	bodies := []string{
		`{}`,
		`{"order_ids":[]}`,
		`{"order_ids":[0]}`,
		`{"order_ids":[` + strings.Join(ids, ",") + `]}`,
	}
	for _, body := range bodies {
		w := serve(engine, http.MethodPost, "/api/v1/orders/sync", strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
	}
}

func TestOrderSyncHandler_SendOrder(t *testing.T) {
	f, h := newOrderSyncFixture()
	engine := newEngine(h)

	f.sync.On("SendInteractive", mock.Anything, int64(42), false).Return(appsync.InteractiveResult{
		Success:        true,
		Message:        "Order sent to Odoo (SO0042)",
		ERPOrderID:     9042,
		ERPOrderNumber: "SO0042",
	})
	f.sync.On("SendInteractive", mock.Anything, int64(43), true).Return(appsync.InteractiveResult{Success: true})

	w := serve(engine, http.MethodPost, "/api/v1/orders/42/send", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got appsync.InteractiveResult
	decodeData(t, w, &got)
	assert.Equal(t, "SO0042", got.ERPOrderNumber)

	w = serve(engine, http.MethodPost, "/api/v1/orders/43/send", strings.NewReader(`{"update":true}`))
	assert.Equal(t, http.StatusOK, w.Code)
	f.sync.AssertExpectations(t)
}

func TestOrderSyncHandler_SendOrderLocked(t *testing.T) {
	f, h := newOrderSyncFixture()
	engine := newEngine(h)

	f.sync.On("SendInteractive", mock.Anything, int64(42), false).Return(appsync.InteractiveResult{
		Message: "Sync already in progress",
		Err:     ordersync.ErrSyncInProgress,
	})

	w := serve(engine, http.MethodPost, "/api/v1/orders/42/send", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeConflict, decode(t, w).Error.Code)
	f.sync.AssertExpectations(t)
}

func TestOrderSyncHandler_InvalidOrderID(t *testing.T) {
	_, h := newOrderSyncFixture()
	engine := newEngine(h)

	for _, path := range []string{"/api/v1/orders/abc/send", "/api/v1/orders/0/cancel", "/api/v1/orders/-3/validate-delivery"} {
		w := serve(engine, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, dto.ErrCodeInvalidInput, decode(t, w).Error.Code)
	}
}

func TestOrderSyncHandler_Lifecycle(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"success", nil, http.StatusOK, ""},
		{"not found", fmt.Errorf("load: %w", ordersync.ErrOrderNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"never synced", ordersync.ErrNoERPReference, http.StatusConflict, dto.ErrCodeConflict},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, h := newOrderSyncFixture()
			engine := newEngine(h)

			f.sync.On("CancelOrder", mock.Anything, int64(7)).Return(appsync.LifecycleResult{Success: true, Message: "cancelled"}, tt.err)
			f.sync.On("ValidateDelivery", mock.Anything, int64(7)).Return(appsync.LifecycleResult{Success: true}, tt.err)

			for _, path := range []string{"/api/v1/orders/7/cancel", "/api/v1/orders/7/validate-delivery"} {
				w := serve(engine, http.MethodPost, path, nil)
				assert.Equal(t, tt.status, w.Code, path)
				resp := decode(t, w)
				if tt.code != "" {
					require.NotNil(t, resp.Error)
					assert.Equal(t, tt.code, resp.Error.Code)
					assert.NotContains(t, resp.Error.Message, "db down")
				} else {
					assert.True(t, resp.Success)
				}
			}
		})
	}
}

func TestOrderSyncHandler_ListFailed(t *testing.T) {
	f, h := newOrderSyncFixture()
	engine := newEngine(h)

	f.failed.On("ListFailed", mock.Anything, MaxBatchSize).Return([]int64{3, 4}, nil).Once()
	f.failed.On("ListFailed", mock.Anything, 1).Return(nil, nil).Once()
	f.failed.On("CountFailed", mock.Anything).Return(int64(2), nil)

	w := serve(engine, http.MethodGet, "/api/v1/orders/failed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got FailedOrdersResponse
	decodeData(t, w, &got)
	assert.Equal(t, []int64{3, 4}, got.OrderIDs)
	assert.Equal(t, int64(2), got.Total)

	w = serve(engine, http.MethodGet, "/api/v1/orders/failed?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"order_ids":[]`)

	w = serve(engine, http.MethodGet, "/api/v1/orders/failed?limit=0x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.failed.AssertExpectations(t)
}

func TestOrderSyncHandler_CheckStock(t *testing.T) {
	f, h := newOrderSyncFixture()
	engine := newEngine(h)

	f.stock.On("Available", mock.Anything, "SKU-1", float64(0)).Return(float64(4), nil)
	f.stock.On("Available", mock.Anything, "SKU-2", float64(6)).Return(float64(0),
		fmt.Errorf("%w: timeout", ordersync.ErrStockUnavailable))

	w := serve(engine, http.MethodGet, "/api/v1/stock/SKU-1?qty=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got StockCheckResponse
	decodeData(t, w, &got)
	assert.Equal(t, StockCheckResponse{SKU: "SKU-1", Available: 4, Requested: 5, InStock: false}, got)

	w = serve(engine, http.MethodGet, "/api/v1/stock/SKU-1", nil)
	decodeData(t, w, &got)
	assert.True(t, got.InStock)

	w = serve(engine, http.MethodGet, "/api/v1/stock/SKU-2?multiplier=6", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeERPUnavailable, decode(t, w).Error.Code)

	w = serve(engine, http.MethodGet, "/api/v1/stock/SKU-1?qty=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
