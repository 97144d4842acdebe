package ordersync

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/telemetry"
)

// DefaultMaxRetries is the number of retries after the first attempt
const DefaultMaxRetries = 3

// DefaultLockTTL bounds how long a crashed sync can hold an order lock
const DefaultLockTTL = 5 * time.Minute

// Metrics receives sync engine measurements
type Metrics interface {
	RecordAttempt(ctx context.Context, success bool, duration time.Duration)
	RecordRetry(ctx context.Context)
	RecordOrders(ctx context.Context, update bool, processed, failed int)
}

type noopMetrics struct{}

func (noopMetrics) RecordAttempt(context.Context, bool, time.Duration) {}
func (noopMetrics) RecordRetry(context.Context)                        {}
func (noopMetrics) RecordOrders(context.Context, bool, int, int)       {}

// Dependencies are the ports the orchestrator drives
type Dependencies struct {
	Orders   ordersync.OrderRepository
	Gateway  ordersync.ERPGateway
	Tokens   ordersync.TokenProvider
	Stock    ordersync.StockResyncer
	Activity ordersync.ActivityRecorder
}

// Orchestrator drives batch sends (AUTH, BUILD, SEND, RECONCILE, RETRY),
// cancellations and delivery validations.
type Orchestrator struct {
	orders     ordersync.OrderRepository
	gateway    ordersync.ERPGateway
	tokens     ordersync.TokenProvider
	activity   ordersync.ActivityRecorder
	builder    *PayloadBuilder
	reconciler *Reconciler
	messages   *Localizer
	retry      ordersync.RetryPolicy
	locker     ordersync.OrderLocker
	lockTTL    time.Duration
	metrics    Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithRetryPolicy overrides the backoff policy
func WithRetryPolicy(p ordersync.RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retry = p
	}
}

// WithOrderLocker serializes syncs of the same order
func WithOrderLocker(locker ordersync.OrderLocker, ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.locker = locker
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLocalizer sets the language of notes and messages
func WithLocalizer(l *Localizer) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.messages = l
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates the sync engine
func NewOrchestrator(deps Dependencies, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		orders:   deps.Orders,
		gateway:  deps.Gateway,
		tokens:   deps.Tokens,
		activity: deps.Activity,
		builder:  NewPayloadBuilder(),
		messages: NewLocalizer(""),
		retry:    ordersync.DefaultRetryPolicy(DefaultMaxRetries),
		lockTTL:  DefaultLockTTL,
		metrics:  noopMetrics{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.reconciler = NewReconciler(deps.Orders, deps.Stock, o.messages, logger)
	return o
}

// SendOrders sends a batch of orders, retrying whole-batch failures with
// exponential backoff. Every requested id is reported as processed or failed.
func (o *Orchestrator) SendOrders(ctx context.Context, req SyncRequest) BatchResult {
	ids := uniqueIDs(req.OrderIDs)

	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "send_orders",
		telemetry.WithAttribute(telemetry.SpanAttrOrderCount, len(ids)),
		telemetry.WithAttribute(telemetry.SpanAttrUpdate, req.Update),
	)
	defer span.End()

	result := BatchResult{Outcomes: make(map[int64]Outcome, len(ids))}

	lockedIDs, release := o.acquireLocks(ctx, ids, &result)
	defer release()

	orders := o.loadOrders(ctx, lockedIDs, &result)

	payloads := map[int64]ordersync.OrderPayload{}
	if len(orders) > 0 {
		payloads = o.run(ctx, req, orders, &result)
	}

	o.finish(&result, ids)
	o.emitOutcomeEvents(ctx, ids, &result, payloads, req.Update)
	o.metrics.RecordOrders(ctx, req.Update, len(result.ProcessedIDs), len(result.FailedIDs))

	telemetry.SetAttributes(span,
		telemetry.SpanAttrProcessed, len(result.ProcessedIDs),
		telemetry.SpanAttrFailed, len(result.FailedIDs),
		telemetry.SpanAttrAttempts, len(result.Attempts),
	)
	if !result.Success {
		telemetry.RecordError(span, ordersync.ErrOrderRejected)
	}

	o.logger.Info("order sync finished",
		zap.Int64s("processed", result.ProcessedIDs),
		zap.Int64s("failed", result.FailedIDs),
		zap.Int("attempts", len(result.Attempts)),
		zap.Bool("update", req.Update),
	)
	return result
}

// SendInteractive sends one order and returns a success/failure envelope
func (o *Orchestrator) SendInteractive(ctx context.Context, orderID int64, update bool) InteractiveResult {
	res := o.SendOrders(ctx, SyncRequest{OrderIDs: []int64{orderID}, Update: update, LogActivity: true})
	outcome := res.Outcomes[orderID]
	return InteractiveResult{
		Success:        outcome.Success,
		Message:        outcome.Message,
		ERPOrderID:     outcome.ERPOrderID,
		ERPOrderNumber: outcome.ERPOrderNumber,
		Err:            outcome.Err,
	}
}

// ResendFailed resends up to limit orders whose last sync failed. Orders
// that already exist in Odoo are sent as updates.
func (o *Orchestrator) ResendFailed(ctx context.Context, limit int) (BatchResult, error) {
	ids, err := o.orders.ListFailed(ctx, limit)
	if err != nil {
		return BatchResult{}, err
	}
	if len(ids) == 0 {
		return BatchResult{Success: true, Outcomes: map[int64]Outcome{}}, nil
	}
	return o.SendOrders(ctx, SyncRequest{OrderIDs: ids, Update: true, LogActivity: true}), nil
}

// run executes the attempt loop and returns the payloads of the last build
func (o *Orchestrator) run(ctx context.Context, req SyncRequest, orders []*ordersync.Order, result *BatchResult) map[int64]ordersync.OrderPayload {
	trigger := ordersync.ActorFromContext(ctx).Source
	orderIDs := make([]int64, len(orders))
	for i, order := range orders {
		orderIDs[i] = order.ID
	}

	// BUILD. Orders already in Odoo are skipped in create mode and never
	// reach AUTH or SEND.
	payloads := make(map[int64]ordersync.OrderPayload, len(orders))
	batch := make([]ordersync.OrderPayload, 0, len(orders))
	sendable := make([]*ordersync.Order, 0, len(orders))
	skipped := make(map[int64]Outcome)
	for _, order := range orders {
		payload, skip := o.builder.Build(order, req.Update)
		if skip {
			skipped[order.ID] = o.skipOutcome(ctx, order)
			continue
		}
		payloads[order.ID] = payload
		batch = append(batch, payload)
		sendable = append(sendable, order)
	}
	withSkipped := func(rec Reconciliation) Reconciliation {
		for _, order := range orders {
			if outcome, ok := skipped[order.ID]; ok {
				rec.add(outcome)
			}
		}
		return rec
	}

	for attempt := 0; ; attempt++ {
		record := AttemptRecord{
			AttemptID: uuid.New(),
			Attempt:   attempt,
			OrderIDs:  orderIDs,
			Payloads:  payloads,
			Update:    req.Update,
			Trigger:   trigger,
			StartedAt: o.now(),
		}

		if len(sendable) == 0 {
			rec := withSkipped(Reconciliation{Success: true, Outcomes: make(map[int64]Outcome, len(skipped))})
			o.recordAttempt(ctx, &record, rec, result, req.LogActivity)
			o.merge(result, skipped)
			return payloads
		}

		// AUTH
		token, err := o.tokens.Token(ctx)
		if err != nil {
			o.logger.Error("odoo authentication failed, aborting sync", zap.Error(err))
			rec := withSkipped(o.reconciler.failAll(ctx, sendable, req.Update, o.messages.Text(msgAuthFailed)))
			o.recordAttempt(ctx, &record, rec, result, req.LogActivity)
			o.merge(result, rec.Outcomes)
			return payloads
		}

		// SEND
		response := o.gateway.SendOrders(ctx, token, batch)
		record.StatusCode = response.StatusCode
		record.TransportError = response.Err
		record.ResponseBody = string(response.Body)
		if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
			if err := o.tokens.Clear(ctx); err != nil {
				o.logger.Warn("failed to clear odoo token", zap.Error(err))
			}
		}

		// RECONCILE
		rec := withSkipped(o.reconciler.Process(ctx, response, sendable, req.Update))
		o.recordAttempt(ctx, &record, rec, result, req.LogActivity)

		if rec.Success || !rec.BatchFailure || attempt >= o.retry.MaxRetries {
			o.merge(result, rec.Outcomes)
			return payloads
		}

		// RETRY
		o.metrics.RecordRetry(ctx)
		delay := o.retry.Delay(attempt)
		o.logger.Warn("odoo batch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("reason", rec.Message),
		)
		sleep := o.retry.Sleep
		if sleep == nil {
			sleep = ordersync.SleepOrDone
		}
		if err := sleep(ctx, delay); err != nil {
			o.logger.Warn("sync retry abandoned", zap.Error(err))
			o.merge(result, rec.Outcomes)
			return payloads
		}
	}
}

// skipOutcome reports an order that already exists in Odoo as processed
func (o *Orchestrator) skipOutcome(ctx context.Context, order *ordersync.Order) Outcome {
	if order.Sync.Status != ordersync.SyncStatusSuccess {
		o.reconciler.setStatus(ctx, order.ID, ordersync.SyncStatusSuccess)
		order.Sync.Status = ordersync.SyncStatusSuccess
	}
	return Outcome{
		OrderID:        order.ID,
		Success:        true,
		Message:        o.messages.Text(msgOrderAlreadySynced),
		ERPOrderID:     order.Sync.ERPOrderID,
		ERPOrderNumber: order.Sync.ERPOrderNumber,
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, record *AttemptRecord, rec Reconciliation, result *BatchResult, logActivity bool) {
	record.Success = rec.Success
	record.Message = rec.Message
	record.ProcessedIDs = rec.ProcessedIDs
	record.FailedIDs = rec.FailedIDs
	record.Duration = o.now().Sub(record.StartedAt)
	result.Attempts = append(result.Attempts, *record)

	o.metrics.RecordAttempt(ctx, rec.Success, record.Duration)

	if !logActivity {
		return
	}
	data := map[string]any{
		"attempt_id":    record.AttemptID.String(),
		"attempt":       record.Attempt,
		"order_ids":     record.OrderIDs,
		"update":        record.Update,
		"status_code":   record.StatusCode,
		"success":       record.Success,
		"message":       record.Message,
		"processed_ids": record.ProcessedIDs,
		"failed_ids":    record.FailedIDs,
		"duration_ms":   record.Duration.Milliseconds(),
	}
	if record.TransportError != nil {
		data["transport_error"] = record.TransportError
	}
	for _, id := range record.OrderIDs {
		o.appendActivity(ctx, ordersync.NewEntry(ctx, ordersync.ActivitySyncAttempt, id, data))
	}
}

// emitOutcomeEvents writes one sent or failed event per requested id
func (o *Orchestrator) emitOutcomeEvents(ctx context.Context, ids []int64, result *BatchResult, payloads map[int64]ordersync.OrderPayload, update bool) {
	for _, id := range ids {
		outcome := result.Outcomes[id]
		data := map[string]any{
			"message":  outcome.Message,
			"update":   update,
			"attempts": len(result.Attempts),
		}
		if payload, ok := payloads[id]; ok {
			data["payload"] = payload
		}

		activityType := ordersync.ActivityOdooOrderFailed
		if outcome.Success {
			activityType = ordersync.ActivityOdooOrderSent
			data["erp_order_id"] = outcome.ERPOrderID
			data["erp_order_number"] = outcome.ERPOrderNumber
		}
		o.appendActivity(ctx, ordersync.NewEntry(ctx, activityType, id, data))
	}
}

func (o *Orchestrator) appendActivity(ctx context.Context, entry ordersync.ActivityEntry) {
	if o.activity == nil {
		return
	}
	if err := o.activity.Append(ctx, entry); err != nil {
		o.logger.Warn("activity log write failed",
			zap.Int64("order_id", entry.OrderID),
			zap.String("activity_type", string(entry.ActivityType)),
			zap.Error(err),
		)
	}
}

// acquireLocks takes the per-order advisory lock of every id. Ids that are
// locked elsewhere are reported failed and left untouched.
func (o *Orchestrator) acquireLocks(ctx context.Context, ids []int64, result *BatchResult) ([]int64, func()) {
	if o.locker == nil {
		return ids, func() {}
	}

	acquired := make([]int64, 0, len(ids))
	for _, id := range ids {
		ok, err := o.locker.TryLock(ctx, id, o.lockTTL)
		if err != nil {
			o.logger.Warn("order lock unavailable, syncing without it", zap.Int64("order_id", id), zap.Error(err))
			acquired = append(acquired, id)
			continue
		}
		if !ok {
			result.Outcomes[id] = Outcome{OrderID: id, Message: o.messages.Text(msgSyncInProgress), Err: ordersync.ErrSyncInProgress}
			continue
		}
		acquired = append(acquired, id)
	}

	return acquired, func() {
		for _, id := range acquired {
			// Unlock must run even when ctx is already cancelled
			if err := o.locker.Unlock(context.WithoutCancel(ctx), id); err != nil {
				o.logger.Warn("failed to release order lock", zap.Int64("order_id", id), zap.Error(err))
			}
		}
	}
}

func (o *Orchestrator) loadOrders(ctx context.Context, ids []int64, result *BatchResult) []*ordersync.Order {
	orders := make([]*ordersync.Order, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			result.Outcomes[id] = Outcome{OrderID: id, Message: o.messages.Text(msgOrderNotFound)}
			continue
		}
		order, err := o.orders.FindByID(ctx, id)
		if err != nil {
			o.logger.Warn("order not loaded", zap.Int64("order_id", id), zap.Error(err))
			result.Outcomes[id] = Outcome{OrderID: id, Message: o.messages.Text(msgOrderNotFound)}
			continue
		}
		orders = append(orders, order)
	}
	return orders
}

func (o *Orchestrator) merge(result *BatchResult, outcomes map[int64]Outcome) {
	for id, outcome := range outcomes {
		result.Outcomes[id] = outcome
	}
}

// finish derives the id lists and summary in request order
func (o *Orchestrator) finish(result *BatchResult, ids []int64) {
	result.ProcessedIDs = make([]int64, 0, len(ids))
	result.FailedIDs = make([]int64, 0)
	for _, id := range ids {
		outcome, ok := result.Outcomes[id]
		if !ok {
			outcome = Outcome{OrderID: id, Message: o.messages.Text(msgNoResponseEntry)}
			result.Outcomes[id] = outcome
		}
		if outcome.Success {
			result.ProcessedIDs = append(result.ProcessedIDs, id)
		} else {
			result.FailedIDs = append(result.FailedIDs, id)
		}
	}
	rec := Reconciliation{ProcessedIDs: result.ProcessedIDs, FailedIDs: result.FailedIDs, Outcomes: result.Outcomes}
	result.Success = len(result.ProcessedIDs) > 0
	if len(ids) > 0 {
		result.Message = o.reconciler.summarize(rec, len(ids))
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
