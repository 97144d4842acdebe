package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
	"github.com/erp/odoosync/internal/interfaces/http/middleware"
)

// dateLayout is the YYYY-MM-DD layout of date query parameters
const dateLayout = "2006-01-02"

// ActivityLogService reads and maintains the activity log
type ActivityLogService interface {
	GetForOrderAllDates(ctx context.Context, orderID int64, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, error)
	GetRange(ctx context.Context, start, end time.Time, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, error)
	Statistics(ctx context.Context, day time.Time) (activitylog.Statistics, error)
	MigrateLegacy(ctx context.Context, day time.Time) (activitylog.MigrationResult, error)
	Cleanup(ctx context.Context, daysToKeep int) (activitylog.CleanupResult, error)
}

var _ ActivityLogService = (*activitylog.Store)(nil)

// ActivityHandler exposes the order activity log
type ActivityHandler struct {
	BaseHandler
	store         ActivityLogService
	retentionDays int
	now           func() time.Time
	adminRoles    []string
}

// NewActivityHandler creates an ActivityHandler. Maintenance routes require one
// of adminRoles.
func NewActivityHandler(store ActivityLogService, retentionDays int, adminRoles ...string) *ActivityHandler {
	return &ActivityHandler{
		store:         store,
		retentionDays: retentionDays,
		now:           time.Now,
		adminRoles:    adminRoles,
	}
}

// ActivityFilterQuery are the filter query parameters shared by the read routes
type ActivityFilterQuery struct {
	ActivityType  string `form:"activity_type"`
	TriggerSource string `form:"trigger_source"`
	UserID        string `form:"user_id"`
}

// ActivityRangeQuery selects a date range, inclusive on both ends
type ActivityRangeQuery struct {
	ActivityFilterQuery
	Start   string `form:"start" binding:"required,datetime=2006-01-02"`
	End     string `form:"end" binding:"required,datetime=2006-01-02"`
	OrderID int64  `form:"order_id" binding:"omitempty,gt=0"`
}

// ActivityDayQuery selects one day, today when empty
type ActivityDayQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// CleanupRequest overrides the configured retention
type CleanupRequest struct {
	DaysToKeep int `json:"days_to_keep" binding:"omitempty,gte=1"`
}

// ActivityListResponse wraps a list of entries
type ActivityListResponse struct {
	Entries []ordersync.ActivityEntry `json:"entries"`
	Count   int                       `json:"count"`
}

func (q ActivityFilterQuery) filter() ordersync.ActivityFilter {
	return ordersync.ActivityFilter{
		ActivityType:  ordersync.ActivityType(q.ActivityType),
		TriggerSource: ordersync.TriggerSource(q.TriggerSource),
		UserID:        q.UserID,
	}
}

func listResponse(entries []ordersync.ActivityEntry) ActivityListResponse {
	if entries == nil {
		entries = []ordersync.ActivityEntry{}
	}
	return ActivityListResponse{Entries: entries, Count: len(entries)}
}

// OrderActivity returns every entry of one order across all days
func (h *ActivityHandler) OrderActivity(c *gin.Context) {
	id, err := orderIDParam(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var query ActivityFilterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	entries, err := h.store.GetForOrderAllDates(c.Request.Context(), id, query.filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listResponse(entries))
}

// Range returns the entries of a date range
func (h *ActivityHandler) Range(c *gin.Context) {
	var query ActivityRangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	start, _ := time.Parse(dateLayout, query.Start)
	end, _ := time.Parse(dateLayout, query.End)

	filter := query.filter()
	filter.OrderID = query.OrderID
	entries, err := h.store.GetRange(c.Request.Context(), start, end, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listResponse(entries))
}

// Stats reports file and entry counts of one day
func (h *ActivityHandler) Stats(c *gin.Context) {
	day, ok := h.bindDay(c)
	if !ok {
		return
	}
	stats, err := h.store.Statistics(c.Request.Context(), day)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Migrate moves one legacy day file into the sharded layout
func (h *ActivityHandler) Migrate(c *gin.Context) {
	day, ok := h.bindDay(c)
	if !ok {
		return
	}
	result, err := h.store.MigrateLegacy(c.Request.Context(), day)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cleanup applies the retention policy now
func (h *ActivityHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}
	days := req.DaysToKeep
	if days == 0 {
		days = h.retentionDays
	}

	result, err := h.store.Cleanup(c.Request.Context(), days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *ActivityHandler) bindDay(c *gin.Context) (time.Time, bool) {
	var query ActivityDayQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return time.Time{}, false
	}
	if query.Date == "" {
		return h.now().UTC(), true
	}
	day, _ := time.Parse(dateLayout, query.Date)
	return day, true
}

// RegisterRoutes mounts the activity routes on rg
func (h *ActivityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	activity := rg.Group("/activity")
	activity.GET("", h.Range)
	activity.GET("/orders/:id", h.OrderActivity)
	activity.GET("/stats", h.Stats)

	admin := activity.Group("")
	if len(h.adminRoles) > 0 {
		admin.Use(middleware.RequireRole(h.adminRoles...))
	}
	admin.POST("/migrate", h.Migrate)
	admin.POST("/cleanup", h.Cleanup)
}
