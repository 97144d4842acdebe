package ordersync

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// SyncRequest asks for one batch send
type SyncRequest struct {
	OrderIDs []int64
	// Update sends orders that already exist in Odoo as updates instead of
	// skipping them
	Update bool
	// LogActivity persists a sync_attempt activity entry per attempt
	LogActivity bool
}

// AttemptRecord is the durable record of one pass through the sync engine
type AttemptRecord struct {
	AttemptID      uuid.UUID                        `json:"attempt_id"`
	Attempt        int                              `json:"attempt"`
	OrderIDs       []int64                          `json:"order_ids"`
	Payloads       map[int64]ordersync.OrderPayload `json:"payloads,omitempty"`
	StatusCode     int                              `json:"status_code,omitempty"`
	TransportError *ordersync.TransportError        `json:"transport_error,omitempty"`
	ResponseBody   string                           `json:"response_body,omitempty"`
	Success        bool                             `json:"success"`
	Message        string                           `json:"message"`
	ProcessedIDs   []int64                          `json:"processed_ids"`
	FailedIDs      []int64                          `json:"failed_ids"`
	Update         bool                             `json:"update"`
	Trigger        ordersync.TriggerSource          `json:"trigger_source"`
	StartedAt      time.Time                        `json:"started_at"`
	Duration       time.Duration                    `json:"duration"`
}

// BatchResult is returned to batch and background callers
type BatchResult struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	ProcessedIDs []int64           `json:"processed_ids"`
	FailedIDs    []int64           `json:"failed_ids"`
	Outcomes     map[int64]Outcome `json:"outcomes"`
	Attempts     []AttemptRecord   `json:"attempts"`
}

// InteractiveResult is the envelope returned to a single-order caller
type InteractiveResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ERPOrderID     int64  `json:"erp_order_id,omitempty"`
	ERPOrderNumber string `json:"erp_order_number,omitempty"`
	Err            error  `json:"-"`
}

// LifecycleResult is the outcome of a cancel or delivery validation call
type LifecycleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
