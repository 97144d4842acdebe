package ordersync

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Outbound wire schema (add_update_order)
// ---------------------------------------------------------------------------

// OrderPayload is one order as sent to api/sale.order/add_update_order.
// WooCommerceID is set for creates, RequestID (the stored ERP id) for updates.
type OrderPayload struct {
	WooCommerceID     int64          `json:"woo_commerce_id,omitempty"`
	RequestID         int64          `json:"RequestID,omitempty"`
	ManualConfirm     bool           `json:"manual_confirm"`
	Note              string         `json:"note"`
	State             string         `json:"state"`
	Billing           BillingPayload `json:"billing"`
	OrderLines        []OrderLine    `json:"order_line"`
	PaymentMethod     string         `json:"payment_method"`
	WCOrderStatus     string         `json:"wc_order_status"`
	WCOrderStatusCode int            `json:"wc_order_status_code"`
	IsVATExempt       bool           `json:"is_vat_exmpt"`
	CreatedDate       string         `json:"created_date"`
	Discount          float64        `json:"discount"`
	Fees              []FeeLine      `json:"fees"`
}

// BillingPayload is the billing block of OrderPayload
type BillingPayload struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Address1       string `json:"address_1"`
	City           string `json:"city"`
	State          string `json:"state"`
	Postcode       string `json:"postcode"`
	CompanyVAT     string `json:"company_vat"`
	ShortAddress   string `json:"short_address"`
	AddressSecond  string `json:"address_second"`
	BuildingNumber string `json:"building_number"`
	District       string `json:"district"`
	Country        string `json:"country"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
}

// OrderLine is one order_line entry
type OrderLine struct {
	DefaultCode   string  `json:"default_code"`
	Name          string  `json:"name"`
	ProductUOMQty float64 `json:"product_uom_qty"`
	PriceUnit     float64 `json:"price_unit"`
	Discount      float64 `json:"discount"`
}

// FeeLine is one fees entry
type FeeLine struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// SendOrdersRequest is the body of add_update_order
type SendOrdersRequest struct {
	Orders []OrderPayload `json:"orders"`
}

// ---------------------------------------------------------------------------
// Inbound wire schema
// ---------------------------------------------------------------------------

// BatchResponse is the body returned by add_update_order
type BatchResponse struct {
	Result *BatchResult `json:"result"`
}

// BatchResult is the result block of BatchResponse.
// Data stays raw so that a non-list value can be detected.
type BatchResult struct {
	Code FlexInt         `json:"Code"`
	Data json.RawMessage `json:"Data"`
}

// OrderResult is one entry of BatchResult.Data
type OrderResult struct {
	ID                FlexInt `json:"ID"`
	Number            string  `json:"Number"`
	WooCommerceID     FlexInt `json:"woo_commerce_id"`
	StatusDescription string  `json:"StatusDescription"`
	ArabicMessage     string  `json:"ArabicMessage"`
	EnglishMessage    string  `json:"EnglishMessage"`
	OdooID            FlexInt `json:"odoo_id"`
	Name              string  `json:"name"`
}

// StatusResponse is the body of cancel_order and validate_order_delivery
type StatusResponse struct {
	Result *StatusResult `json:"result"`
}

// StatusResult carries either Code (cancel) or status/message (validate)
type StatusResult struct {
	Code    FlexInt `json:"Code"`
	Status  FlexInt `json:"status"`
	Message string  `json:"message"`
}

// OK reports a 200 Code or status
func (r *StatusResult) OK() bool {
	if r == nil {
		return false
	}
	return r.Code.Is(200) || r.Status.Is(200)
}

// StockResponse is the body of get_available_qty_data
type StockResponse struct {
	Result *struct {
		Data []struct {
			AvailableQuantity float64 `json:"available_quantity"`
		} `json:"Data"`
	} `json:"result"`
}

// ---------------------------------------------------------------------------
// FlexInt
// ---------------------------------------------------------------------------

// FlexInt decodes the loosely typed integers Odoo returns: numbers, numeric
// strings, false and null. Valid reports that a number was present, zero
// included; false, null and empty strings leave it unset.
type FlexInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "false", "true", `""`:
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt{Value: n, Valid: true}
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt{Value: int64(fl), Valid: true}
	}
	return nil
}

// Truthy reports a present, non-zero value
func (f FlexInt) Truthy() bool {
	return f.Valid && f.Value != 0
}

// Is reports whether the value is present and equal to n
func (f FlexInt) Is(n int64) bool {
	return f.Valid && f.Value == n
}
