package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
	"github.com/erp/odoosync/internal/infrastructure/logger"
	"github.com/erp/odoosync/internal/interfaces/http/dto"
	"github.com/erp/odoosync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError maps domain errors to HTTP responses. Unknown errors are logged
// and reported as internal errors without their text.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, ordersync.ErrInvalidOrderID),
		errors.Is(err, ordersync.ErrInvalidDateRange),
		errors.Is(err, ordersync.ErrInvalidActivity),
		errors.Is(err, activitylog.ErrInvalidRetention):
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, ordersync.ErrOrderNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "Order not found")
	case errors.Is(err, activitylog.ErrLegacyNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "No legacy activity log for this date")
	case errors.Is(err, ordersync.ErrNoERPReference):
		h.ErrorWithCode(c, dto.ErrCodeConflict, "Order has not been synced to Odoo")
	case errors.Is(err, ordersync.ErrSyncInProgress):
		h.ErrorWithCode(c, dto.ErrCodeConflict, "A sync is already in progress for this order")
	case errors.Is(err, ordersync.ErrStockUnavailable),
		errors.Is(err, ordersync.ErrAuthFailed),
		errors.Is(err, ordersync.ErrTransport):
		logger.GetGinLogger(c).Warn("odoo call failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeERPUnavailable, "Odoo is unavailable")
	default:
		logger.GetGinLogger(c).Error("request failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}

// orderIDParam parses the :id path parameter
func orderIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ordersync.ErrInvalidOrderID
	}
	return id, nil
}
