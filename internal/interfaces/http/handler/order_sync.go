package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appsync "github.com/erp/odoosync/internal/application/ordersync"
	"github.com/erp/odoosync/internal/interfaces/http/middleware"
)

// MaxBatchSize bounds the number of orders accepted by one sync request
const MaxBatchSize = 100

// OrderSyncService is the part of the orchestrator the API drives
type OrderSyncService interface {
	SendOrders(ctx context.Context, req appsync.SyncRequest) appsync.BatchResult
	SendInteractive(ctx context.Context, orderID int64, update bool) appsync.InteractiveResult
	CancelOrder(ctx context.Context, orderID int64) (appsync.LifecycleResult, error)
	ValidateDelivery(ctx context.Context, orderID int64) (appsync.LifecycleResult, error)
}

var _ OrderSyncService = (*appsync.Orchestrator)(nil)

// FailedOrderQueue lists orders whose last sync failed
type FailedOrderQueue interface {
	ListFailed(ctx context.Context, limit int) ([]int64, error)
	CountFailed(ctx context.Context) (int64, error)
}

// StockService answers cart stock checks from Odoo
type StockService interface {
	Available(ctx context.Context, sku string, multiplier float64) (float64, error)
}

// OrderSyncHandler exposes order sync operations
type OrderSyncHandler struct {
	BaseHandler
	sync   OrderSyncService
	failed FailedOrderQueue
	stock  StockService
	// logActivity is used when a batch request omits log_activity
	logActivity bool
}

// OrderSyncOption configures an OrderSyncHandler
type OrderSyncOption func(*OrderSyncHandler)

// WithActivityLoggingDefault sets the log_activity default of batch syncs
func WithActivityLoggingDefault(enabled bool) OrderSyncOption {
	return func(h *OrderSyncHandler) {
		h.logActivity = enabled
	}
}

// NewOrderSyncHandler creates an OrderSyncHandler
func NewOrderSyncHandler(sync OrderSyncService, failed FailedOrderQueue, stock StockService, opts ...OrderSyncOption) *OrderSyncHandler {
	h := &OrderSyncHandler{sync: sync, failed: failed, stock: stock, logActivity: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SyncOrdersRequest is the body of a batch sync
type SyncOrdersRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required,min=1,max=100,dive,gt=0"`
	Update   bool    `json:"update"`
	// LogActivity defaults to the handler setting (true unless configured)
	LogActivity *bool `json:"log_activity"`
}

// SendOrderRequest is the optional body of an interactive send
type SendOrderRequest struct {
	Update bool `json:"update"`
}

// FailedOrdersResponse lists the failed orders queue
type FailedOrdersResponse struct {
	OrderIDs []int64 `json:"order_ids"`
	Total    int64   `json:"total"`
}

// StockCheckRequest are the query parameters of a stock check
type StockCheckRequest struct {
	Quantity   float64 `form:"qty" binding:"gte=0"`
	Multiplier float64 `form:"multiplier" binding:"gte=0"`
}

// StockCheckResponse reports availability of one SKU
type StockCheckResponse struct {
	SKU       string  `json:"sku"`
	Available float64 `json:"available"`
	Requested float64 `json:"requested"`
	InStock   bool    `json:"in_stock"`
}

// SyncOrders sends a batch of orders. The response carries the per-order
// outcomes; a failed batch still answers 200 with success=false in data.
func (h *OrderSyncHandler) SyncOrders(c *gin.Context) {
	var req SyncOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	logActivity := h.logActivity
	if req.LogActivity != nil {
		logActivity = *req.LogActivity
	}
	result := h.sync.SendOrders(c.Request.Context(), appsync.SyncRequest{
		OrderIDs:    req.OrderIDs,
		Update:      req.Update,
		LogActivity: logActivity,
	})
	h.Success(c, result)
}

// SendOrder sends one order and returns the message shown to the operator
func (h *OrderSyncHandler) SendOrder(c *gin.Context) {
	id, err := orderIDParam(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req SendOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	result := h.sync.SendInteractive(c.Request.Context(), id, req.Update)
	if result.Err != nil {
		h.HandleError(c, result.Err)
		return
	}
	h.Success(c, result)
}

// CancelOrder cancels the Odoo order of a synced order
func (h *OrderSyncHandler) CancelOrder(c *gin.Context) {
	h.lifecycle(c, h.sync.CancelOrder)
}

// ValidateDelivery validates the Odoo delivery of a synced order
func (h *OrderSyncHandler) ValidateDelivery(c *gin.Context) {
	h.lifecycle(c, h.sync.ValidateDelivery)
}

func (h *OrderSyncHandler) lifecycle(c *gin.Context, call func(context.Context, int64) (appsync.LifecycleResult, error)) {
	id, err := orderIDParam(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := call(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListFailed returns the failed orders queue, oldest first
func (h *OrderSyncHandler) ListFailed(c *gin.Context) {
	var query struct {
		Limit int `form:"limit" binding:"omitempty,gte=1,lte=1000"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = MaxBatchSize
	}

	ctx := c.Request.Context()
	ids, err := h.failed.ListFailed(ctx, query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	total, err := h.failed.CountFailed(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	h.Success(c, FailedOrdersResponse{OrderIDs: ids, Total: total})
}

// CheckStock reports whether qty units of a SKU are available in Odoo
func (h *OrderSyncHandler) CheckStock(c *gin.Context) {
	sku := c.Param("sku")
	var req StockCheckRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	available, err := h.stock.Available(c.Request.Context(), sku, req.Multiplier)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, StockCheckResponse{
		SKU:       sku,
		Available: available,
		Requested: req.Quantity,
		InStock:   available >= req.Quantity,
	})
}

// RegisterRoutes mounts the order routes on rg
func (h *OrderSyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.POST("/sync", h.SyncOrders)
	orders.GET("/failed", h.ListFailed)
	orders.POST("/:id/send", h.SendOrder)
	orders.POST("/:id/cancel", h.CancelOrder)
	orders.POST("/:id/validate-delivery", h.ValidateDelivery)

	rg.GET("/stock/:sku", h.CheckStock)
}
