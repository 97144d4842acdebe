package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is configured
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// FailedQueueProvider reports how many orders currently wait for a resend
type FailedQueueProvider interface {
	CountFailed(ctx context.Context) (int64, error)
}

// SyncMetricsConfig configures NewSyncMetrics
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	// FailedQueue feeds the failed-orders gauge. Optional.
	FailedQueue FailedQueueProvider
}

// SyncMetrics records order sync engine measurements
type SyncMetrics struct {
	logger *zap.Logger

	attempts        *Counter
	retries         *Counter
	orders          *Counter
	attemptDuration *Histogram
	failedQueue     *Gauge

	failedProvider FailedQueueProvider
	collectOnce    sync.Once
	stopOnce       sync.Once
	stop           chan struct{}
}

// NewSyncMetrics registers the sync instruments on cfg.Meter
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &SyncMetrics{
		logger:         logger,
		failedProvider: cfg.FailedQueue,
		stop:           make(chan struct{}),
	}

	var err error
	if m.attempts, err = NewCounter(cfg.Meter, "odoosync_attempts_total", "Odoo batch send attempts", "{attempts}"); err != nil {
		return nil, err
	}
	if m.retries, err = NewCounter(cfg.Meter, "odoosync_retries_total", "Batch retries after a whole-batch failure", "{retries}"); err != nil {
		return nil, err
	}
	if m.orders, err = NewCounter(cfg.Meter, "odoosync_orders_total", "Orders reconciled, by outcome", "{orders}"); err != nil {
		return nil, err
	}
	if m.attemptDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "odoosync_attempt_duration_seconds",
		Description: "Duration of one send and reconcile pass",
		Unit:        "s",
		Boundaries:  ERPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.failedQueue, err = NewGauge(cfg.Meter, "odoosync_failed_orders", "Orders whose last sync failed", "{orders}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAttempt counts one attempt and its duration
func (m *SyncMetrics) RecordAttempt(ctx context.Context, success bool, duration time.Duration) {
	m.attempts.Inc(ctx, AttrSuccess.Bool(success))
	m.attemptDuration.RecordDuration(ctx, duration, AttrSuccess.Bool(success))
}

// RecordRetry counts one retry
func (m *SyncMetrics) RecordRetry(ctx context.Context) {
	m.retries.Inc(ctx)
}

// RecordOrders counts processed and failed orders of a finished batch
func (m *SyncMetrics) RecordOrders(ctx context.Context, update bool, processed, failed int) {
	if processed > 0 {
		m.orders.Add(ctx, int64(processed), AttrUpdate.Bool(update), AttrOutcome.String("processed"))
	}
	if failed > 0 {
		m.orders.Add(ctx, int64(failed), AttrUpdate.Bool(update), AttrOutcome.String("failed"))
	}
}

// StartPeriodicCollection samples the failed-orders gauge every interval
// until ctx is done or Stop is called. Without a provider it does nothing.
func (m *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m.failedProvider == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	m.collectOnce.Do(func() {
		go m.collect(ctx, interval)
	})
}

func (m *SyncMetrics) collect(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.sampleFailedQueue(ctx)
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleFailedQueue(ctx)
		}
	}
}

func (m *SyncMetrics) sampleFailedQueue(ctx context.Context) {
	n, err := m.failedProvider.CountFailed(ctx)
	if err != nil {
		m.logger.Warn("failed to count failed orders", zap.Error(err))
		return
	}
	m.failedQueue.Record(ctx, n)
}

// Stop ends periodic collection
func (m *SyncMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}
