package ordersync

import (
	"context"
	"fmt"
	"time"
)

// TransportError is a failure to talk to the ERP at all
type TransportError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrTransport
func (e *TransportError) Unwrap() error {
	return ErrTransport
}

// TransportResult is the raw outcome of one ERP call. Exactly one of Err or
// (Body, StatusCode) is meaningful; HTTP 4xx/5xx are not transport errors.
type TransportResult struct {
	Body       []byte
	StatusCode int
	Err        *TransportError
}

// Failed returns true when the call never produced an HTTP response
func (r TransportResult) Failed() bool {
	return r.Err != nil
}

// ERPGateway is the port for the Odoo order endpoints
type ERPGateway interface {
	SendOrders(ctx context.Context, token string, orders []OrderPayload) TransportResult
	CancelOrder(ctx context.Context, token string, erpOrderID int64) TransportResult
	ValidateDelivery(ctx context.Context, token string, erpOrderID int64, modified time.Time) TransportResult
}

// TokenProvider hands out ERP bearer tokens
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// StockResyncer refreshes storefront stock levels from the ERP
type StockResyncer interface {
	Resync(ctx context.Context, items []LineItem)
}
