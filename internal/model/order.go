package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending        OrderStatus = "PENDING"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderProcessing     OrderStatus = "PROCESSING"
	OrderShipped        OrderStatus = "SHIPPED"
	OrderOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderRefunded       OrderStatus = "REFUNDED"
)

// PaymentStatus tracks money, independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PayCOD          PaymentMethod = "COD"
	PayBankTransfer PaymentMethod = "BANK_TRANSFER"
	PayJazzCash     PaymentMethod = "JAZZCASH"
	PayEasyPaisa    PaymentMethod = "EASYPAISA"
	PayCard         PaymentMethod = "CARD"
)

// Address is a delivery address, embedded with a column prefix.
type Address struct {
	FullName   string `gorm:"size:120" json:"full_name"`
	Phone      string `gorm:"size:20" json:"phone"`
	Line1      string `gorm:"size:255" json:"line1"`
	Line2      string `gorm:"size:255" json:"line2"`
	City       string `gorm:"size:80" json:"city"`
	Province   string `gorm:"size:80" json:"province"`
	PostalCode string `gorm:"size:20" json:"postal_code"`
}

// Order is a placed checkout. Totals are computed once at placement.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo       string        `gorm:"size:32;uniqueIndex;not null" json:"order_no"`
	UserID        string        `gorm:"size:64;not null;index" json:"user_id"`
	Status        OrderStatus   `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"size:20;not null" json:"payment_method"`

	CouponID   *uint  `gorm:"index" json:"coupon_id,omitempty"`
	CouponCode string `gorm:"size:40" json:"coupon_code,omitempty"`

	// amounts in PKR
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Discount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping"`
	CODFee      decimal.Decimal `gorm:"column:cod_fee;type:numeric(12,2);not null" json:"cod_fee"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Email           string  `gorm:"size:160" json:"email,omitempty"`
	Notes           string  `gorm:"size:500" json:"notes,omitempty"`

	CancelReason string     `gorm:"size:255" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is the persisted row of an OrderLine.
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductKind ProductKind     `gorm:"size:20;not null" json:"type"`
	GeneratorID *uint           `gorm:"index" json:"generator_id,omitempty"`
	PartID      *uint           `gorm:"index" json:"part_id,omitempty"`
	Name        string          `gorm:"size:160;not null" json:"name"`
	SKU         string          `gorm:"size:64" json:"sku,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
}

func (OrderItem) TableName() string { return "order_items" }

// ProductRef returns the family and id of the purchased product.
func (i OrderItem) ProductRef() (ProductKind, uint) {
	if i.ProductKind == KindPart && i.PartID != nil {
		return KindPart, *i.PartID
	}
	if i.GeneratorID != nil {
		return KindGenerator, *i.GeneratorID
	}
	return i.ProductKind, 0
}

// OrderLine is the snapshot of one product taken at placement. It is built
// only by NewOrderLine and never refreshed from the live catalog.
type OrderLine struct {
	kind      ProductKind
	productID uint
	name      string
	sku       string
	unitPrice decimal.Decimal
	quantity  int64
}

// NewOrderLine captures name, sku and price of p for quantity units.
func NewOrderLine(p Product, quantity int64) OrderLine {
	f := p.Fields()
	line := OrderLine{
		kind:      p.Kind(),
		productID: p.ProductID(),
		name:      f.Name,
		unitPrice: f.Price,
		quantity:  quantity,
	}
	if f.SKU != nil {
		line.sku = *f.SKU
	}
	return line
}

func (l OrderLine) Kind() ProductKind          { return l.kind }
func (l OrderLine) ProductID() uint            { return l.productID }
func (l OrderLine) Name() string               { return l.name }
func (l OrderLine) UnitPrice() decimal.Decimal { return l.unitPrice }
func (l OrderLine) Quantity() int64            { return l.quantity }

// Total is unit price times quantity.
func (l OrderLine) Total() decimal.Decimal {
	return l.unitPrice.Mul(decimal.NewFromInt(l.quantity))
}

// Item converts the line to its table row.
func (l OrderLine) Item() OrderItem {
	id := l.productID
	item := OrderItem{
		ProductKind: l.kind,
		Name:        l.name,
		SKU:         l.sku,
		UnitPrice:   l.unitPrice,
		Quantity:    l.quantity,
		LineTotal:   l.Total(),
	}
	if l.kind == KindPart {
		item.PartID = &id
	} else {
		item.GeneratorID = &id
	}
	return item
}
