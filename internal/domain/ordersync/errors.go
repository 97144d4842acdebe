package ordersync

import "errors"

// ---------------------------------------------------------------------------
// Order Sync Errors
// ---------------------------------------------------------------------------

var (
	// ErrAuthFailed means no ERP token could be obtained after retries.
	ErrAuthFailed = errors.New("ordersync: odoo authentication failed")
	// ErrTransport means the ERP could not be reached (network, timeout).
	ErrTransport = errors.New("ordersync: odoo transport error")
	// ErrProtocol means the ERP answered with an unexpected shape or code.
	ErrProtocol = errors.New("ordersync: unexpected odoo response")
	// ErrOrderRejected means the ERP explicitly rejected a single order.
	ErrOrderRejected = errors.New("ordersync: order rejected by odoo")
	// ErrLogWrite means an activity log entry could not be persisted.
	ErrLogWrite = errors.New("ordersync: activity log write failed")

	ErrOrderNotFound    = errors.New("ordersync: order not found")
	ErrNoERPReference   = errors.New("ordersync: order has no odoo reference")
	ErrSyncInProgress   = errors.New("ordersync: sync already in progress for order")
	ErrInvalidOrderID   = errors.New("ordersync: invalid order id")
	ErrInvalidDateRange = errors.New("ordersync: invalid date range")
	ErrInvalidActivity  = errors.New("ordersync: invalid activity entry")
	ErrStockUnavailable = errors.New("ordersync: stock lookup failed")
)
