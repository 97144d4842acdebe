package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// maxResponseSize is the maximum allowed response size from Odoo (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Transport error codes carried by ordersync.TransportError
const (
	CodeTimeout       = "timeout"
	CodeRequestFailed = "http_request_failed"
	CodeEncodeFailed  = "encode_failed"
	CodeReadFailed    = "read_failed"
)

// modifiedDateLayout is the datetime format Odoo expects
const modifiedDateLayout = "2006-01-02 15:04:05"

// Client is a stateless wrapper around the Odoo JSON endpoints.
// It never retries and never treats HTTP 4xx/5xx as errors; callers inspect
// the returned TransportResult.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ ordersync.ERPGateway = (*Client)(nil)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Odoo client with the given configuration
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     config,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Config returns the client configuration
func (c *Client) Config() *Config {
	return c.config
}

type authRequest struct {
	Params authParams `json:"params"`
}

type authParams struct {
	DB       string `json:"db"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authResponse struct {
	Result *struct {
		Token string `json:"token"`
	} `json:"result"`
}

// Authenticate exchanges the configured credentials for a bearer token.
// Transport failures are returned as *ordersync.TransportError so callers can
// retry them; a reply without a token wraps ordersync.ErrAuthFailed.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body := authRequest{Params: authParams{
		DB:       c.config.Database,
		Login:    c.config.Login,
		Password: c.config.Password,
	}}

	result := c.post(ctx, EndpointAuthenticate, "", body, c.config.RequestTimeout)
	if result.Failed() {
		return "", result.Err
	}

	var resp authResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		return "", fmt.Errorf("%w: HTTP %d: %v", ordersync.ErrAuthFailed, result.StatusCode, err)
	}
	if resp.Result == nil || resp.Result.Token == "" {
		return "", fmt.Errorf("%w: HTTP %d: no token in reply", ordersync.ErrAuthFailed, result.StatusCode)
	}
	return resp.Result.Token, nil
}

// SendOrders creates or updates a batch of orders
func (c *Client) SendOrders(ctx context.Context, token string, orders []ordersync.OrderPayload) ordersync.TransportResult {
	return c.post(ctx, EndpointAddUpdateOrder, token, ordersync.SendOrdersRequest{Orders: orders}, c.config.SendTimeout)
}

type requestRef struct {
	RequestID    int64  `json:"RequestID"`
	ModifiedDate string `json:"modified_date,omitempty"`
}

type refsRequest struct {
	Orders []requestRef `json:"orders"`
}

// CancelOrder cancels the ERP order with the given id
func (c *Client) CancelOrder(ctx context.Context, token string, erpOrderID int64) ordersync.TransportResult {
	body := refsRequest{Orders: []requestRef{{RequestID: erpOrderID}}}
	return c.post(ctx, EndpointCancelOrder, token, body, c.config.RequestTimeout)
}

// ValidateDelivery marks the ERP order's delivery as done
func (c *Client) ValidateDelivery(ctx context.Context, token string, erpOrderID int64, modified time.Time) ordersync.TransportResult {
	body := refsRequest{Orders: []requestRef{{
		RequestID:    erpOrderID,
		ModifiedDate: modified.UTC().Format(modifiedDateLayout),
	}}}
	return c.post(ctx, EndpointValidateDelivery, token, body, c.config.RequestTimeout)
}

type stockRequest struct {
	DefaultCode string `json:"default_code"`
	LocationID  int64  `json:"location_id"`
}

// GetStock queries the available quantity of a SKU at the configured location
func (c *Client) GetStock(ctx context.Context, token, sku string) ordersync.TransportResult {
	body := stockRequest{DefaultCode: sku, LocationID: c.config.LocationID}
	return c.post(ctx, EndpointAvailableStock, token, body, c.config.RequestTimeout)
}

// post sends a JSON body and captures the outcome as a TransportResult
func (c *Client) post(ctx context.Context, endpoint, token string, payload any, timeout time.Duration) ordersync.TransportResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return transportFailure(CodeEncodeFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL(endpoint), bytes.NewReader(data))
	if err != nil {
		return transportFailure(CodeRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := CodeRequestFailed
		if isTimeout(err) {
			code = CodeTimeout
		}
		c.logger.Warn("odoo request failed",
			zap.String("endpoint", endpoint),
			zap.String("code", code),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return transportFailure(code, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return transportFailure(CodeReadFailed, err)
	}

	c.logger.Debug("odoo request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return ordersync.TransportResult{Body: body, StatusCode: resp.StatusCode}
}

func transportFailure(code string, err error) ordersync.TransportResult {
	return ordersync.TransportResult{Err: &ordersync.TransportError{Code: code, Message: err.Error()}}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
