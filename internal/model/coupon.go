package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountKind selects how a coupon's Value is interpreted.
type DiscountKind string

const (
	DiscountPercentage   DiscountKind = "PERCENTAGE"
	DiscountFixedAmount  DiscountKind = "FIXED_AMOUNT"
	DiscountFreeShipping DiscountKind = "FREE_SHIPPING"
)

func (k DiscountKind) Valid() bool {
	switch k {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeShipping:
		return true
	}
	return false
}

// Coupon is a discount code. Code is stored upper-cased so lookups are
// case-insensitive exact matches.
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code         string              `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Description  string              `gorm:"size:255" json:"description"`
	Kind         DiscountKind        `gorm:"size:20;not null" json:"discount_type"`
	Value        decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"value"`
	MinOrder     decimal.NullDecimal `gorm:"column:min_order_amount;type:numeric(12,2)" json:"min_order_amount"`
	MaxDiscount  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"max_discount"`
	UsageLimit   *int64              `json:"usage_limit"`
	UsageCount   int64               `gorm:"not null;default:0" json:"usage_count"`
	PerUserLimit int64               `gorm:"not null" json:"per_user_limit"`
	StartsAt     *time.Time          `json:"starts_at"`
	ExpiresAt    *time.Time          `json:"expires_at"`
	IsActive     bool                `gorm:"not null" json:"is_active"`

	AppliesToGenerators bool `gorm:"not null" json:"applies_to_generators"`
	AppliesToParts      bool `gorm:"not null" json:"applies_to_parts"`
}

func (Coupon) TableName() string { return "coupons" }

// AppliesTo reports whether the coupon may discount products of kind.
func (c *Coupon) AppliesTo(kind ProductKind) bool {
	if kind == KindPart {
		return c.AppliesToParts
	}
	return c.AppliesToGenerators
}
