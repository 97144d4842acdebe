package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appsync "github.com/erp/odoosync/internal/application/ordersync"
	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
	"github.com/erp/odoosync/internal/infrastructure/scheduler"
	"github.com/erp/odoosync/internal/interfaces/http/dto"
	"github.com/erp/odoosync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockOrderSyncService implements OrderSyncService for testing
type MockOrderSyncService struct {
	mock.Mock
}

func (m *MockOrderSyncService) SendOrders(ctx context.Context, req appsync.SyncRequest) appsync.BatchResult {
	args := m.Called(ctx, req)
	return args.Get(0).(appsync.BatchResult)
}

func (m *MockOrderSyncService) SendInteractive(ctx context.Context, orderID int64, update bool) appsync.InteractiveResult {
	args := m.Called(ctx, orderID, update)
	return args.Get(0).(appsync.InteractiveResult)
}

func (m *MockOrderSyncService) CancelOrder(ctx context.Context, orderID int64) (appsync.LifecycleResult, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(appsync.LifecycleResult), args.Error(1)
}

func (m *MockOrderSyncService) ValidateDelivery(ctx context.Context, orderID int64) (appsync.LifecycleResult, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(appsync.LifecycleResult), args.Error(1)
}

// MockFailedOrderQueue implements FailedOrderQueue for testing
type MockFailedOrderQueue struct {
	mock.Mock
}

func (m *MockFailedOrderQueue) ListFailed(ctx context.Context, limit int) ([]int64, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockFailedOrderQueue) CountFailed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockStockService implements StockService for testing
type MockStockService struct {
	mock.Mock
}

func (m *MockStockService) Available(ctx context.Context, sku string, multiplier float64) (float64, error) {
	args := m.Called(ctx, sku, multiplier)
	return args.Get(0).(float64), args.Error(1)
}

// MockActivityLogService implements ActivityLogService for testing
type MockActivityLogService struct {
	mock.Mock
}

func (m *MockActivityLogService) GetForOrderAllDates(ctx context.Context, orderID int64, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, error) {
	args := m.Called(ctx, orderID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ordersync.ActivityEntry), args.Error(1)
}

func (m *MockActivityLogService) GetRange(ctx context.Context, start, end time.Time, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, error) {
	args := m.Called(ctx, start, end, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ordersync.ActivityEntry), args.Error(1)
}

func (m *MockActivityLogService) Statistics(ctx context.Context, day time.Time) (activitylog.Statistics, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(activitylog.Statistics), args.Error(1)
}

func (m *MockActivityLogService) MigrateLegacy(ctx context.Context, day time.Time) (activitylog.MigrationResult, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(activitylog.MigrationResult), args.Error(1)
}

func (m *MockActivityLogService) Cleanup(ctx context.Context, daysToKeep int) (activitylog.CleanupResult, error) {
	args := m.Called(ctx, daysToKeep)
	return args.Get(0).(activitylog.CleanupResult), args.Error(1)
}

// MockJobRunner implements JobRunner for testing
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) Jobs() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockJobRunner) History(limit int) []scheduler.JobRun {
	return m.Called(limit).Get(0).([]scheduler.JobRun)
}

func (m *MockJobRunner) RunNow(ctx context.Context, name string) (*scheduler.JobRun, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.JobRun), args.Error(1)
}

// ---- helpers ----

func serve(engine *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData re-decodes the data field of a response into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func newEngine(registrars ...interface{ RegisterRoutes(*gin.RouterGroup) }) *gin.Engine {
	engine := gin.New()
	api := engine.Group("/api/v1")
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	return engine
}
