package ordersync

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// ActivityType
// ---------------------------------------------------------------------------

// ActivityType classifies an activity log entry
type ActivityType string

const (
	ActivityStatusChange       ActivityType = "status_change"
	ActivityOrderCreated       ActivityType = "order_created"
	ActivityOrderUpdated       ActivityType = "order_updated"
	ActivityRESTAPIUpdate      ActivityType = "rest_api_update"
	ActivityAdminActionViewed  ActivityType = "admin_action_viewed"
	ActivityBulkAction         ActivityType = "bulk_action"
	ActivityAJAXAction         ActivityType = "ajax_action"
	ActivityOdooOrderSent      ActivityType = "odoo_order_sent"
	ActivityOdooOrderFailed    ActivityType = "odoo_order_failed"
	ActivityOdooOrderCancelled ActivityType = "odoo_order_cancelled"
	ActivitySyncAttempt        ActivityType = "sync_attempt"
)

// IsValid returns true if the activity type is known
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityStatusChange, ActivityOrderCreated, ActivityOrderUpdated,
		ActivityRESTAPIUpdate, ActivityAdminActionViewed, ActivityBulkAction,
		ActivityAJAXAction, ActivityOdooOrderSent, ActivityOdooOrderFailed,
		ActivityOdooOrderCancelled, ActivitySyncAttempt:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// TriggerSource
// ---------------------------------------------------------------------------

// TriggerSource names what started the recorded action
type TriggerSource string

const (
	TriggerAdminPanel      TriggerSource = "Admin Panel"
	TriggerAJAX            TriggerSource = "AJAX"
	TriggerRESTAPI         TriggerSource = "REST API"
	TriggerFrontend        TriggerSource = "Frontend"
	TriggerCronJob         TriggerSource = "Cron Job"
	TriggerCLI             TriggerSource = "WP-CLI"
	TriggerBulkAction      TriggerSource = "Bulk Action"
	TriggerOdooIntegration TriggerSource = "Odoo Integration"
)

// IsValid returns true if the trigger source is known
func (s TriggerSource) IsValid() bool {
	switch s {
	case TriggerAdminPanel, TriggerAJAX, TriggerRESTAPI, TriggerFrontend,
		TriggerCronJob, TriggerCLI, TriggerBulkAction, TriggerOdooIntegration:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// ActivityEntry
// ---------------------------------------------------------------------------

// ActivityUser identifies who performed an action
type ActivityUser struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

// ActivityEntry is one immutable line of the activity trail.
// OrderID is zero for system-level events.
type ActivityEntry struct {
	Timestamp     time.Time      `json:"timestamp"`
	ActivityType  ActivityType   `json:"activity_type"`
	OrderID       int64          `json:"order_id"`
	User          ActivityUser   `json:"user"`
	TriggerSource TriggerSource  `json:"trigger_source"`
	IPAddress     string         `json:"ip_address"`
	UserAgent     string         `json:"user_agent"`
	Data          map[string]any `json:"data,omitempty"`
}

// Summary returns the compact form mirrored into the daily summary
func (e ActivityEntry) Summary() ActivitySummary {
	return ActivitySummary{
		Timestamp:     e.Timestamp,
		OrderID:       e.OrderID,
		ActivityType:  e.ActivityType,
		UserID:        e.User.ID,
		TriggerSource: e.TriggerSource,
	}
}

// ActivitySummary is the daily-summary projection of an entry
type ActivitySummary struct {
	Timestamp     time.Time     `json:"timestamp"`
	OrderID       int64         `json:"order_id"`
	ActivityType  ActivityType  `json:"activity_type"`
	UserID        string        `json:"user_id"`
	TriggerSource TriggerSource `json:"trigger_source"`
}

// ActivityFilter selects entries by exact match on the fields that are set
type ActivityFilter struct {
	OrderID       int64
	ActivityType  ActivityType
	TriggerSource TriggerSource
	UserID        string
}

// IsEmpty returns true when no field is set
func (f ActivityFilter) IsEmpty() bool {
	return f == ActivityFilter{}
}

// Matches reports whether the entry satisfies every set field
func (f ActivityFilter) Matches(e ActivityEntry) bool {
	return f.MatchesSummary(e.Summary())
}

// MatchesSummary is Matches evaluated on the summary projection
func (f ActivityFilter) MatchesSummary(s ActivitySummary) bool {
	if f.OrderID != 0 && s.OrderID != f.OrderID {
		return false
	}
	if f.ActivityType != "" && s.ActivityType != f.ActivityType {
		return false
	}
	if f.TriggerSource != "" && s.TriggerSource != f.TriggerSource {
		return false
	}
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Actor
// ---------------------------------------------------------------------------

// Actor describes who triggered the current call and from where.
// It travels in the context so that every activity entry written during the
// call carries it.
type Actor struct {
	User      ActivityUser
	Source    TriggerSource
	IPAddress string
	UserAgent string
}

type actorKey struct{}

// WithActor returns a context carrying the actor
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor in ctx, or a system actor attributed
// to the Odoo integration when none is set.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok {
		return actor
	}
	return Actor{
		User:   ActivityUser{ID: "0", Username: "system", DisplayName: "System"},
		Source: TriggerOdooIntegration,
	}
}

// NewEntry builds an entry of the given type attributed to the context actor
func NewEntry(ctx context.Context, activityType ActivityType, orderID int64, data map[string]any) ActivityEntry {
	actor := ActorFromContext(ctx)
	return ActivityEntry{
		ActivityType:  activityType,
		OrderID:       orderID,
		User:          actor.User,
		TriggerSource: actor.Source,
		IPAddress:     actor.IPAddress,
		UserAgent:     actor.UserAgent,
		Data:          data,
	}
}
