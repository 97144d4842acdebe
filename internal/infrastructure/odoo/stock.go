package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// StockClient is the subset of Client used for stock lookups
type StockClient interface {
	GetStock(ctx context.Context, token, sku string) ordersync.TransportResult
}

// StockChecker reads available quantities from Odoo, expressed in storefront
// units (ERP units divided by the product's stock multiplier).
type StockChecker struct {
	client StockClient
	tokens ordersync.TokenProvider
	writer ordersync.StockLevelWriter
	logger *zap.Logger
}

var _ ordersync.StockResyncer = (*StockChecker)(nil)

// NewStockChecker creates a stock checker. writer may be nil when the
// checker is only used for availability queries.
func NewStockChecker(client StockClient, tokens ordersync.TokenProvider, writer ordersync.StockLevelWriter, logger *zap.Logger) *StockChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockChecker{
		client: client,
		tokens: tokens,
		writer: writer,
		logger: logger,
	}
}

// Available returns floor(sum(available_quantity) / multiplier).
// A transport failure clears the cached token so the next call
// re-authenticates.
func (s *StockChecker) Available(ctx context.Context, sku string, multiplier float64) (float64, error) {
	if multiplier <= 0 {
		multiplier = 1
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ordersync.ErrStockUnavailable, err)
	}

	result := s.client.GetStock(ctx, token, sku)
	if result.Failed() {
		if err := s.tokens.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear odoo token", zap.Error(err))
		}
		return 0, fmt.Errorf("%w: %w", ordersync.ErrStockUnavailable, result.Err)
	}

	var resp ordersync.StockResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil || resp.Result == nil {
		return 0, fmt.Errorf("%w: %w: HTTP %d", ordersync.ErrStockUnavailable, ordersync.ErrProtocol, result.StatusCode)
	}

	var total float64
	for _, quant := range resp.Result.Data {
		total += quant.AvailableQuantity
	}
	return math.Floor(total / multiplier), nil
}

// CanFulfil reports whether quantity storefront units are available
func (s *StockChecker) CanFulfil(ctx context.Context, sku string, multiplier, quantity float64) (bool, error) {
	available, err := s.Available(ctx, sku, multiplier)
	if err != nil {
		return false, err
	}
	return available >= quantity, nil
}

// Resync refreshes the storefront stock of every SKU in items.
// Failures are logged and skipped.
func (s *StockChecker) Resync(ctx context.Context, items []ordersync.LineItem) {
	if s.writer == nil {
		return
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		if _, ok := seen[item.SKU]; ok {
			continue
		}
		seen[item.SKU] = struct{}{}

		available, err := s.Available(ctx, item.SKU, item.EffectiveMultiplier())
		if err != nil {
			s.logger.Warn("stock resync skipped", zap.String("sku", item.SKU), zap.Error(err))
			continue
		}
		if err := s.writer.UpdateStock(ctx, item.SKU, available); err != nil {
			s.logger.Warn("stock level update failed", zap.String("sku", item.SKU), zap.Error(err))
		}
	}
}
