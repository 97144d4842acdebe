package ordersync

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderLifecycleStatus
// ---------------------------------------------------------------------------

// OrderLifecycleStatus is the canonical storefront order status.
// Storefront spellings are normalized into it by NormalizeStatus at the
// repository boundary.
type OrderLifecycleStatus string

const (
	OrderStatusPending    OrderLifecycleStatus = "pending"
	OrderStatusProcessing OrderLifecycleStatus = "processing"
	OrderStatusOnHold     OrderLifecycleStatus = "on-hold"
	OrderStatusCompleted  OrderLifecycleStatus = "completed"
	OrderStatusCancelled  OrderLifecycleStatus = "cancelled"
	OrderStatusRefunded   OrderLifecycleStatus = "refunded"
	OrderStatusFailed     OrderLifecycleStatus = "failed"
	// OrderStatusCustom covers shop-specific states without ERP meaning.
	OrderStatusCustom OrderLifecycleStatus = "custom"
)

var statusAliases = map[string]OrderLifecycleStatus{
	"pending":          OrderStatusPending,
	"pending-payment":  OrderStatusPending,
	"processing":       OrderStatusProcessing,
	"on-hold":          OrderStatusOnHold,
	"onhold":           OrderStatusOnHold,
	"completed":        OrderStatusCompleted,
	"cancelled":        OrderStatusCancelled,
	"canceled":         OrderStatusCancelled,
	"was-canceled":     OrderStatusCancelled,
	"was-cancelled":    OrderStatusCancelled,
	"custom-cancelled": OrderStatusCancelled,
	"custom-canceled":  OrderStatusCancelled,
	"refunded":         OrderStatusRefunded,
	"failed":           OrderStatusFailed,
	"custom-failed":    OrderStatusFailed,
}

// NormalizeStatus maps any storefront status spelling ("wc-cancelled",
// "was-canceled", "custom-failed", ...) to its canonical value.
func NormalizeStatus(raw string) OrderLifecycleStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "wc-")
	if status, ok := statusAliases[s]; ok {
		return status
	}
	return OrderStatusCustom
}

// IsCancelled returns true for the cancelled variant
func (s OrderLifecycleStatus) IsCancelled() bool {
	return s == OrderStatusCancelled
}

// IsFailed returns true for the failed variant
func (s OrderLifecycleStatus) IsFailed() bool {
	return s == OrderStatusFailed
}

// Code returns the numeric status code sent to the ERP as wc_order_status_code
func (s OrderLifecycleStatus) Code() int {
	switch s {
	case OrderStatusPending:
		return 1
	case OrderStatusProcessing:
		return 2
	case OrderStatusOnHold:
		return 3
	case OrderStatusCompleted:
		return 4
	case OrderStatusCancelled:
		return 5
	case OrderStatusRefunded:
		return 6
	case OrderStatusFailed:
		return 7
	default:
		return 0
	}
}

// String returns the string representation of OrderLifecycleStatus
func (s OrderLifecycleStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// BillingAddress is the billing block of an order
type BillingAddress struct {
	FirstName      string
	LastName       string
	Company        string
	Address1       string
	Address2       string
	City           string
	State          string
	Postcode       string
	Country        string
	Email          string
	Phone          string
	VATNumber      string
	ShortAddress   string
	BuildingNumber string
	District       string
}

// AddOnKind discriminates add-on groups attached to a line item
type AddOnKind string

const (
	// AddOnKindProduct groups reference bundled gift products
	AddOnKindProduct AddOnKind = "product"
	// AddOnKindOther covers text, engraving and similar add-ons
	AddOnKindOther AddOnKind = "other"
)

// AddOnItem is one product reference inside a product add-on group
type AddOnItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// AddOn is one add-on group selected for a line item
type AddOn struct {
	Kind  AddOnKind   `json:"kind"`
	Label string      `json:"label"`
	Items []AddOnItem `json:"items"`
}

// LineItem is a single product line of an order
type LineItem struct {
	ProductID int64
	SKU       string
	Name      string
	// Quantity is the number of storefront units ordered
	Quantity float64
	// Price is the storefront unit price before uplift
	Price           decimal.Decimal
	DiscountPercent float64
	// StockMultiplier converts storefront units into ERP stock units.
	// It only applies to variant products; zero means 1.
	StockMultiplier float64
	IsVariant       bool
	IsGift          bool
	AddOns          []AddOn
}

// EffectiveMultiplier returns the multiplier used for ERP quantities
func (li LineItem) EffectiveMultiplier() float64 {
	if !li.IsVariant || li.StockMultiplier <= 0 {
		return 1
	}
	return li.StockMultiplier
}

// Fee is an extra order fee line
type Fee struct {
	Name  string
	Total decimal.Decimal
}

// Order is a storefront order as read by the sync engine.
// It is owned by the storefront; the engine only reads it and annotates
// notes and SyncMetadata.
type Order struct {
	ID            int64
	Status        OrderLifecycleStatus
	Billing       BillingAddress
	Items         []LineItem
	Fees          []Fee
	Subtotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
	// CartDiscountMeta is the platform-stored cart discount, possibly
	// duplicated by the storefront into several values.
	CartDiscountMeta MetaValues
	CustomerNote     string
	PaymentMethod    string
	Currency         string
	VATExempt        bool
	CreatedAt        time.Time
	Sync             SyncMetadata
}

// SKUs returns the SKUs of all line items that have one
func (o *Order) SKUs() []string {
	skus := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.SKU != "" {
			skus = append(skus, item.SKU)
		}
	}
	return skus
}

// ---------------------------------------------------------------------------
// MetaValues
// ---------------------------------------------------------------------------

// MetaValues holds a stored meta value that may be a scalar or a list of
// (often duplicated) values.
type MetaValues []string

// UnmarshalJSON accepts a JSON string, number, null or list of those
func (m *MetaValues) UnmarshalJSON(data []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		values := make(MetaValues, 0, len(list))
		for _, raw := range list {
			if v, ok := scalarString(raw); ok {
				values = append(values, v)
			}
		}
		*m = values
		return nil
	}
	if v, ok := scalarString(data); ok {
		*m = MetaValues{v}
		return nil
	}
	*m = nil
	return nil
}

// FirstPositive returns the first value that parses to a positive amount
func (m MetaValues) FirstPositive() (decimal.Decimal, bool) {
	for _, v := range m {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err == nil && d.IsPositive() {
			return d, true
		}
	}
	return decimal.Zero, false
}

func scalarString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var f json.Number
	if err := json.Unmarshal(raw, &f); err == nil {
		return f.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}
