package ordersync

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// ShippingLineCode is the ERP product code of the synthetic shipping line
const ShippingLineCode = "1000000"

const (
	payloadState      = "draft"
	createdDateLayout = "2006-01-02 15:04:05"
	shippingLineName  = "Shipping"
)

// priceUplift is applied to unit and shipping prices outside the Gulf-exempt set
var priceUplift = decimal.RequireFromString("1.15")

// gulfExemptCountries never receive the price uplift. Saudi Arabia is not
// part of the set.
var gulfExemptCountries = map[string]struct{}{
	"AE": {},
	"BH": {},
	"KW": {},
	"OM": {},
	"QA": {},
}

// IsGulfExempt reports whether a billing country skips the price uplift
func IsGulfExempt(country string) bool {
	_, ok := gulfExemptCountries[strings.ToUpper(strings.TrimSpace(country))]
	return ok
}

// PayloadBuilder maps storefront orders onto the add_update_order schema.
// It has no side effects.
type PayloadBuilder struct{}

// NewPayloadBuilder creates a payload builder
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{}
}

// IsUpdate reports whether an order is sent as an update: an update was
// requested and the order already holds an ERP id.
func IsUpdate(order *ordersync.Order, update bool) bool {
	return update && order.Sync.HasERPOrder()
}

// Build returns the payload for one order. skip is true for a create-mode
// call on an order that already exists in the ERP; such orders are not sent.
func (b *PayloadBuilder) Build(order *ordersync.Order, update bool) (payload ordersync.OrderPayload, skip bool) {
	if !update && order.Sync.HasERPOrder() {
		return ordersync.OrderPayload{}, true
	}

	uplift := !IsGulfExempt(order.Billing.Country)

	payload = ordersync.OrderPayload{
		ManualConfirm:     false,
		Note:              order.CustomerNote,
		State:             payloadState,
		Billing:           buildBilling(order.Billing),
		OrderLines:        make([]ordersync.OrderLine, 0, len(order.Items)+1),
		PaymentMethod:     order.PaymentMethod,
		WCOrderStatus:     order.Status.String(),
		WCOrderStatusCode: order.Status.Code(),
		IsVATExempt:       order.VATExempt,
		Discount:          ResolveDiscount(order).InexactFloat64(),
		Fees:              make([]ordersync.FeeLine, 0, len(order.Fees)),
	}
	if IsUpdate(order, update) {
		payload.RequestID = order.Sync.ERPOrderID
	} else {
		payload.WooCommerceID = order.ID
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedDate = order.CreatedAt.UTC().Format(createdDateLayout)
	}

	for _, item := range order.Items {
		payload.OrderLines = append(payload.OrderLines, buildLine(item, uplift))
	}

	if order.ShippingTotal.IsPositive() {
		payload.OrderLines = append(payload.OrderLines, ordersync.OrderLine{
			DefaultCode:   ShippingLineCode,
			Name:          shippingLineName,
			ProductUOMQty: 1,
			PriceUnit:     applyUplift(order.ShippingTotal, uplift).InexactFloat64(),
		})
	}

	for _, fee := range order.Fees {
		payload.Fees = append(payload.Fees, ordersync.FeeLine{
			Name:  fee.Name,
			Total: fee.Total.InexactFloat64(),
		})
	}

	for _, item := range order.Items {
		payload.OrderLines = append(payload.OrderLines, giftLines(item)...)
	}

	return payload, false
}

// ResolveDiscount applies the three-tier fallback: the order's own discount
// total, then the first positive stored cart discount, then
// subtotal + shipping + tax - total.
func ResolveDiscount(order *ordersync.Order) decimal.Decimal {
	if order.DiscountTotal.IsPositive() {
		return order.DiscountTotal
	}
	if d, ok := order.CartDiscountMeta.FirstPositive(); ok {
		return d
	}
	derived := order.Subtotal.Add(order.ShippingTotal).Add(order.TaxTotal).Sub(order.Total)
	if derived.IsPositive() {
		return derived
	}
	return decimal.Zero
}

// UnitPrice returns price * quantity / (quantity * multiplier), the price of
// one ERP unit before uplift.
func UnitPrice(item ordersync.LineItem) decimal.Decimal {
	multiplier := decimal.NewFromFloat(item.EffectiveMultiplier())
	if item.Quantity <= 0 {
		return item.Price.Div(multiplier)
	}
	quantity := decimal.NewFromFloat(item.Quantity)
	return item.Price.Mul(quantity).Div(quantity.Mul(multiplier))
}

func buildLine(item ordersync.LineItem, uplift bool) ordersync.OrderLine {
	return ordersync.OrderLine{
		DefaultCode:   item.SKU,
		Name:          item.Name,
		ProductUOMQty: item.Quantity * item.EffectiveMultiplier(),
		PriceUnit:     applyUplift(UnitPrice(item), uplift).InexactFloat64(),
		Discount:      item.DiscountPercent,
	}
}

// giftLines turns product add-ons into zero-priced lines. Items that are
// themselves gifts never contribute.
func giftLines(item ordersync.LineItem) []ordersync.OrderLine {
	if item.IsGift {
		return nil
	}
	var lines []ordersync.OrderLine
	for _, addOn := range item.AddOns {
		if addOn.Kind != ordersync.AddOnKindProduct {
			continue
		}
		for _, gift := range addOn.Items {
			if gift.SKU == "" {
				continue
			}
			quantity := gift.Quantity
			if quantity <= 0 {
				quantity = item.Quantity
			}
			lines = append(lines, ordersync.OrderLine{
				DefaultCode:   gift.SKU,
				Name:          gift.Name,
				ProductUOMQty: quantity,
			})
		}
	}
	return lines
}

func applyUplift(price decimal.Decimal, uplift bool) decimal.Decimal {
	if !uplift {
		return price
	}
	return price.Mul(priceUplift)
}

func buildBilling(a ordersync.BillingAddress) ordersync.BillingPayload {
	return ordersync.BillingPayload{
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Address1:       a.Address1,
		City:           a.City,
		State:          a.State,
		Postcode:       a.Postcode,
		CompanyVAT:     a.VATNumber,
		ShortAddress:   a.ShortAddress,
		AddressSecond:  a.Address2,
		BuildingNumber: a.BuildingNumber,
		District:       a.District,
		Country:        a.Country,
		Email:          a.Email,
		Phone:          a.Phone,
	}
}
