package ordersync

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// alreadyExistsMarker in a rejection message means the ERP already holds
// the order; the rejection is then treated as success.
const alreadyExistsMarker = "already exists"

// Outcome is the reconciled result of one order
type Outcome struct {
	OrderID        int64  `json:"order_id"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ERPOrderID     int64  `json:"erp_order_id,omitempty"`
	ERPOrderNumber string `json:"erp_order_number,omitempty"`
	// Err is set when the order was refused before reaching Odoo
	Err error `json:"-"`
}

// Reconciliation is the result of processing one add_update_order reply
type Reconciliation struct {
	// Success is true when at least one order succeeded
	Success      bool
	Message      string
	ProcessedIDs []int64
	FailedIDs    []int64
	Outcomes     map[int64]Outcome
	// BatchFailure marks a reply that could not be read at all (transport,
	// bad shape, non-200 code). Only these failures are retried.
	BatchFailure bool
}

// Reconciler interprets ERP batch replies and applies their side effects:
// sync metadata, order notes and stock resync.
type Reconciler struct {
	repo     ordersync.OrderRepository
	stock    ordersync.StockResyncer
	messages *Localizer
	logger   *zap.Logger
}

// NewReconciler creates a reconciler. stock may be nil.
func NewReconciler(repo ordersync.OrderRepository, stock ordersync.StockResyncer, messages *Localizer, logger *zap.Logger) *Reconciler {
	if messages == nil {
		messages = NewLocalizer("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		repo:     repo,
		stock:    stock,
		messages: messages,
		logger:   logger,
	}
}

// Process reconciles a reply against the orders that were sent.
// Every order in orders ends up in exactly one of ProcessedIDs or FailedIDs.
func (r *Reconciler) Process(ctx context.Context, result ordersync.TransportResult, orders []*ordersync.Order, update bool) Reconciliation {
	if result.Failed() {
		return r.failAll(ctx, orders, update, r.messages.Text(msgUnexpectedReply)+": "+result.Err.Error())
	}

	var resp ordersync.BatchResponse
	if len(result.Body) == 0 || json.Unmarshal(result.Body, &resp) != nil || resp.Result == nil || !resp.Result.Code.Valid {
		return r.failAll(ctx, orders, update, r.messages.Text(msgUnexpectedReply))
	}
	if resp.Result.Code.Value != 200 {
		return r.failAll(ctx, orders, update, r.messages.Text(msgUnexpectedCode, strconv.FormatInt(resp.Result.Code.Value, 10)))
	}

	var entries []json.RawMessage
	if len(resp.Result.Data) == 0 || json.Unmarshal(resp.Result.Data, &entries) != nil || entries == nil {
		return r.failAll(ctx, orders, update, r.messages.Text(msgInvalidData))
	}

	byStoreID := make(map[int64]*ordersync.Order, len(orders))
	byERPID := make(map[int64]*ordersync.Order, len(orders))
	for _, o := range orders {
		byStoreID[o.ID] = o
		if IsUpdate(o, update) {
			byERPID[o.Sync.ERPOrderID] = o
		}
	}

	outcomes := make(map[int64]Outcome, len(orders))
	for _, raw := range entries {
		var entry ordersync.OrderResult
		if err := json.Unmarshal(raw, &entry); err != nil {
			r.logger.Debug("skipping undecodable odoo entry", zap.ByteString("entry", raw))
			continue
		}

		order := resolveOrder(entry, byStoreID, byERPID)
		if order == nil {
			continue
		}
		if _, seen := outcomes[order.ID]; seen {
			continue
		}
		outcomes[order.ID] = r.evaluate(entry, order)
	}

	rec := Reconciliation{Outcomes: make(map[int64]Outcome, len(orders))}
	for _, order := range orders {
		outcome, ok := outcomes[order.ID]
		if !ok {
			outcome = Outcome{OrderID: order.ID, Message: r.messages.Text(msgNoResponseEntry)}
		}
		r.apply(ctx, order, outcome, update)
		rec.add(outcome)
	}
	rec.Success = len(rec.ProcessedIDs) > 0
	rec.Message = r.summarize(rec, len(orders))
	return rec
}

// resolveOrder finds the requested order an entry refers to, by storefront
// id or, for updates, by ERP id.
func resolveOrder(entry ordersync.OrderResult, byStoreID, byERPID map[int64]*ordersync.Order) *ordersync.Order {
	if entry.WooCommerceID.Truthy() {
		if o, ok := byStoreID[entry.WooCommerceID.Value]; ok {
			return o
		}
	}
	if entry.ID.Truthy() {
		if o, ok := byERPID[entry.ID.Value]; ok {
			return o
		}
	}
	return nil
}

// evaluate applies the single-order decision tree
func (r *Reconciler) evaluate(entry ordersync.OrderResult, order *ordersync.Order) Outcome {
	outcome := Outcome{OrderID: order.ID}

	switch {
	case !entry.ID.Truthy() && entry.StatusDescription == "Failed":
		if rejectionMeansExists(entry) {
			outcome.Success = true
			outcome.ERPOrderID = entry.OdooID.Value
			outcome.ERPOrderNumber = entry.Name
			outcome.Message = r.messages.Text(msgOrderAlreadyExists, entry.Name, strconv.FormatInt(entry.OdooID.Value, 10))
			return outcome
		}
		outcome.Message = r.messages.ERPMessage(entry)
	case entry.ID.Truthy() && entry.Number != "":
		outcome.Success = true
		outcome.ERPOrderID = entry.ID.Value
		outcome.ERPOrderNumber = entry.Number
		outcome.Message = r.messages.Text(msgOrderSent, entry.Number, strconv.FormatInt(entry.ID.Value, 10))
	case !entry.ID.Truthy() || !entry.WooCommerceID.Truthy():
		outcome.Message = r.messages.Text(msgInvalidStructure)
	default:
		outcome.Message = r.messages.Text(msgUnrecognizedFormat)
	}
	return outcome
}

func rejectionMeansExists(entry ordersync.OrderResult) bool {
	for _, m := range []string{entry.EnglishMessage, entry.ArabicMessage, entry.StatusDescription} {
		if strings.Contains(strings.ToLower(m), alreadyExistsMarker) {
			return true
		}
	}
	return false
}

// apply persists one outcome. Updates never rewrite the ERP id or number and
// never downgrade the sync status.
func (r *Reconciler) apply(ctx context.Context, order *ordersync.Order, outcome Outcome, update bool) {
	isUpdate := IsUpdate(order, update)

	if outcome.Success {
		if isUpdate {
			r.setStatus(ctx, order.ID, ordersync.SyncStatusSuccess)
			r.addNote(ctx, order.ID, r.messages.Text(msgOrderUpdated, strconv.FormatInt(order.Sync.ERPOrderID, 10)))
		} else {
			meta := ordersync.SyncMetadata{
				ERPOrderID:     outcome.ERPOrderID,
				ERPOrderNumber: outcome.ERPOrderNumber,
				Status:         ordersync.SyncStatusSuccess,
			}
			if err := r.repo.SaveSyncMetadata(ctx, order.ID, meta); err != nil {
				r.logger.Error("failed to save sync metadata", zap.Int64("order_id", order.ID), zap.Error(err))
			}
			order.Sync = meta
			r.addNote(ctx, order.ID, outcome.Message)
		}
		if r.stock != nil {
			r.stock.Resync(ctx, order.Items)
		}
		return
	}

	if isUpdate {
		r.addNote(ctx, order.ID, r.messages.Text(msgUpdateFailedNote, outcome.Message))
		return
	}
	r.setStatus(ctx, order.ID, ordersync.SyncStatusFailed)
	order.Sync.Status = ordersync.SyncStatusFailed
	r.addNote(ctx, order.ID, r.messages.Text(msgSyncFailedNote, outcome.Message))
}

// failAll marks every order failed with the same message
func (r *Reconciler) failAll(ctx context.Context, orders []*ordersync.Order, update bool, message string) Reconciliation {
	rec := Reconciliation{
		Outcomes:     make(map[int64]Outcome, len(orders)),
		BatchFailure: true,
		Message:      message,
	}
	for _, order := range orders {
		outcome := Outcome{OrderID: order.ID, Message: message}
		r.apply(ctx, order, outcome, update)
		rec.add(outcome)
	}
	r.logger.Warn("odoo batch failed",
		zap.Int("orders", len(orders)),
		zap.Bool("update", update),
		zap.String("reason", message),
	)
	return rec
}

func (r *Reconciler) summarize(rec Reconciliation, total int) string {
	switch {
	case len(rec.FailedIDs) == 0:
		return r.messages.Text(msgAllSent, strconv.Itoa(total))
	case len(rec.ProcessedIDs) > 0:
		return r.messages.Text(msgPartiallySent, strconv.Itoa(len(rec.ProcessedIDs)), strconv.Itoa(total))
	default:
		return r.messages.Text(msgNoneSent, rec.Outcomes[rec.FailedIDs[0]].Message)
	}
}

func (r *Reconciler) setStatus(ctx context.Context, orderID int64, status ordersync.SyncStatus) {
	if err := r.repo.SetSyncStatus(ctx, orderID, status); err != nil {
		r.logger.Error("failed to set sync status",
			zap.Int64("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) addNote(ctx context.Context, orderID int64, note string) {
	if err := r.repo.AddNote(ctx, orderID, note); err != nil {
		r.logger.Warn("failed to add order note", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func (rec *Reconciliation) add(o Outcome) {
	rec.Outcomes[o.OrderID] = o
	if o.Success {
		rec.ProcessedIDs = append(rec.ProcessedIDs, o.OrderID)
	} else {
		rec.FailedIDs = append(rec.FailedIDs, o.OrderID)
	}
}
