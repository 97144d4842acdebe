package ordersync

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/telemetry"
)

// CancelOrder cancels the order in Odoo. It is a one-shot call: failures are
// noted on the order and never retried. Sync status is left unchanged.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID int64) (LifecycleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "cancel_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
	)
	defer span.End()

	order, err := o.lifecycleOrder(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return LifecycleResult{}, err
	}

	res := o.oneShot(ctx, order, func(token string) ordersync.TransportResult {
		return o.gateway.CancelOrder(ctx, token, order.Sync.ERPOrderID)
	}, msgCancelled, msgCancelFailed)

	if res.Success {
		o.appendActivity(ctx, ordersync.NewEntry(ctx, ordersync.ActivityOdooOrderCancelled, orderID, map[string]any{
			"erp_order_id":     order.Sync.ERPOrderID,
			"erp_order_number": order.Sync.ERPOrderNumber,
			"message":          res.Message,
		}))
	}
	return res, nil
}

// ValidateDelivery marks the order's delivery as done in Odoo. Like
// CancelOrder it is one-shot.
func (o *Orchestrator) ValidateDelivery(ctx context.Context, orderID int64) (LifecycleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "validate_delivery",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
	)
	defer span.End()

	order, err := o.lifecycleOrder(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return LifecycleResult{}, err
	}

	modified := o.now()
	return o.oneShot(ctx, order, func(token string) ordersync.TransportResult {
		return o.gateway.ValidateDelivery(ctx, token, order.Sync.ERPOrderID, modified)
	}, msgDeliveryValidated, msgDeliveryValidateErr), nil
}

func (o *Orchestrator) lifecycleOrder(ctx context.Context, orderID int64) (*ordersync.Order, error) {
	if orderID <= 0 {
		return nil, ordersync.ErrInvalidOrderID
	}
	order, err := o.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Sync.HasERPOrder() {
		return nil, ordersync.ErrNoERPReference
	}
	return order, nil
}

// oneShot fetches a token, performs call and notes the outcome on the order
func (o *Orchestrator) oneShot(ctx context.Context, order *ordersync.Order, call func(token string) ordersync.TransportResult, okKey, failKey string) LifecycleResult {
	fail := func(reason string) LifecycleResult {
		msg := o.messages.Text(failKey, reason)
		o.reconciler.addNote(ctx, order.ID, msg)
		o.logger.Warn("odoo lifecycle call failed",
			zap.Int64("order_id", order.ID),
			zap.Int64("erp_order_id", order.Sync.ERPOrderID),
			zap.String("reason", reason),
		)
		return LifecycleResult{Message: msg}
	}

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return fail(o.messages.Text(msgAuthFailed))
	}

	result := call(token)
	if result.Failed() {
		return fail(result.Err.Error())
	}

	var resp ordersync.StatusResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil || resp.Result == nil {
		return fail(o.messages.Text(msgUnexpectedReply))
	}
	if !resp.Result.OK() {
		if resp.Result.Message != "" {
			return fail(resp.Result.Message)
		}
		code := resp.Result.Code
		if !code.Valid {
			code = resp.Result.Status
		}
		return fail(o.messages.Text(msgUnexpectedCode, strconv.FormatInt(code.Value, 10)))
	}

	msg := o.messages.Text(okKey)
	o.reconciler.addNote(ctx, order.ID, msg)
	return LifecycleResult{Success: true, Message: msg}
}
