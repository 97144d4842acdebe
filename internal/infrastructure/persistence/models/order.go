package models

import (
	"encoding/json"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/shopspring/decimal"
)

// OrderModel is the storefront order row. The three sync columns are the
// only ones the sync engine writes.
type OrderModel struct {
	ID               int64           `gorm:"primaryKey"`
	Status           string          `gorm:"type:varchar(50);not null"`
	BillingFirstName string          `gorm:"type:varchar(100)"`
	BillingLastName  string          `gorm:"type:varchar(100)"`
	BillingCompany   string          `gorm:"type:varchar(200)"`
	BillingAddress1  string          `gorm:"type:varchar(255)"`
	BillingAddress2  string          `gorm:"type:varchar(255)"`
	BillingCity      string          `gorm:"type:varchar(100)"`
	BillingState     string          `gorm:"type:varchar(100)"`
	BillingPostcode  string          `gorm:"type:varchar(20)"`
	BillingCountry   string          `gorm:"type:varchar(2)"`
	BillingEmail     string          `gorm:"type:varchar(200)"`
	BillingPhone     string          `gorm:"type:varchar(50)"`
	BillingVATNumber string          `gorm:"column:billing_vat_number;type:varchar(50)"`
	ShortAddress     string          `gorm:"type:varchar(50)"`
	BuildingNumber   string          `gorm:"type:varchar(20)"`
	District         string          `gorm:"type:varchar(100)"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingTotal    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxTotal         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountTotal    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	// CartDiscountMeta is the raw stored JSON, scalar or list
	CartDiscountMeta string `gorm:"type:text"`
	CustomerNote     string `gorm:"type:text"`
	PaymentMethod    string `gorm:"type:varchar(100)"`
	Currency         string `gorm:"type:varchar(3)"`
	VATExempt        bool   `gorm:"column:vat_exempt;not null;default:false"`
	SyncStatus       string `gorm:"type:varchar(20);not null;default:'';index"`
	ERPOrderID       int64  `gorm:"column:erp_order_id;not null;default:0"`
	ERPOrderNumber   string `gorm:"column:erp_order_number;type:varchar(100);not null;default:''"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
	Fees  []OrderFeeModel  `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is one line item
type OrderItemModel struct {
	ID              int64           `gorm:"primaryKey"`
	OrderID         int64           `gorm:"not null;index"`
	Position        int             `gorm:"not null;default:0"`
	ProductID       int64           `gorm:"not null;default:0"`
	SKU             string          `gorm:"column:sku;type:varchar(100)"`
	Name            string          `gorm:"type:varchar(255)"`
	Quantity        float64         `gorm:"not null"`
	Price           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountPercent float64         `gorm:"not null;default:0"`
	StockMultiplier float64         `gorm:"not null;default:0"`
	IsVariant       bool            `gorm:"not null;default:false"`
	IsGift          bool            `gorm:"not null;default:false"`
	// AddOns is a JSON list of ordersync.AddOn
	AddOns string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderFeeModel is one extra fee line
type OrderFeeModel struct {
	ID      int64           `gorm:"primaryKey"`
	OrderID int64           `gorm:"not null;index"`
	Name    string          `gorm:"type:varchar(200)"`
	Total   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderFeeModel) TableName() string {
	return "order_fees"
}

// OrderNoteModel is a private order note
type OrderNoteModel struct {
	ID        int64  `gorm:"primaryKey"`
	OrderID   int64  `gorm:"not null;index"`
	Note      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (OrderNoteModel) TableName() string {
	return "order_notes"
}

// ProductStockModel is the storefront stock level of a SKU
type ProductStockModel struct {
	SKU       string  `gorm:"column:sku;primaryKey;type:varchar(100)"`
	Quantity  float64 `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (ProductStockModel) TableName() string {
	return "product_stock"
}

// ToDomain converts the row and its children to a domain order. Malformed
// add-on or discount JSON is dropped rather than failing the read.
func (m *OrderModel) ToDomain() *ordersync.Order {
	order := &ordersync.Order{
		ID:     m.ID,
		Status: ordersync.NormalizeStatus(m.Status),
		Billing: ordersync.BillingAddress{
			FirstName:      m.BillingFirstName,
			LastName:       m.BillingLastName,
			Company:        m.BillingCompany,
			Address1:       m.BillingAddress1,
			Address2:       m.BillingAddress2,
			City:           m.BillingCity,
			State:          m.BillingState,
			Postcode:       m.BillingPostcode,
			Country:        m.BillingCountry,
			Email:          m.BillingEmail,
			Phone:          m.BillingPhone,
			VATNumber:      m.BillingVATNumber,
			ShortAddress:   m.ShortAddress,
			BuildingNumber: m.BuildingNumber,
			District:       m.District,
		},
		Subtotal:      m.Subtotal,
		ShippingTotal: m.ShippingTotal,
		TaxTotal:      m.TaxTotal,
		DiscountTotal: m.DiscountTotal,
		Total:         m.Total,
		CustomerNote:  m.CustomerNote,
		PaymentMethod: m.PaymentMethod,
		Currency:      m.Currency,
		VATExempt:     m.VATExempt,
		CreatedAt:     m.CreatedAt,
		Sync: ordersync.SyncMetadata{
			ERPOrderID:     m.ERPOrderID,
			ERPOrderNumber: m.ERPOrderNumber,
			Status:         ordersync.SyncStatus(m.SyncStatus),
		},
	}
	if m.CartDiscountMeta != "" {
		var meta ordersync.MetaValues
		if err := json.Unmarshal([]byte(m.CartDiscountMeta), &meta); err == nil {
			order.CartDiscountMeta = meta
		}
	}

	order.Items = make([]ordersync.LineItem, 0, len(m.Items))
	for _, it := range m.Items {
		order.Items = append(order.Items, it.ToDomain())
	}
	order.Fees = make([]ordersync.Fee, 0, len(m.Fees))
	for _, f := range m.Fees {
		order.Fees = append(order.Fees, ordersync.Fee{Name: f.Name, Total: f.Total})
	}
	return order
}

// ToDomain converts the row to a domain line item
func (m *OrderItemModel) ToDomain() ordersync.LineItem {
	item := ordersync.LineItem{
		ProductID:       m.ProductID,
		SKU:             m.SKU,
		Name:            m.Name,
		Quantity:        m.Quantity,
		Price:           m.Price,
		DiscountPercent: m.DiscountPercent,
		StockMultiplier: m.StockMultiplier,
		IsVariant:       m.IsVariant,
		IsGift:          m.IsGift,
	}
	if m.AddOns != "" {
		var addOns []ordersync.AddOn
		if err := json.Unmarshal([]byte(m.AddOns), &addOns); err == nil {
			item.AddOns = addOns
		}
	}
	return item
}
