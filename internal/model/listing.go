package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListingStatus is the moderation state of a marketplace listing.
type ListingStatus string

const (
	ListingPending  ListingStatus = "PENDING"
	ListingApproved ListingStatus = "APPROVED"
	ListingRejected ListingStatus = "REJECTED"
	ListingSold     ListingStatus = "SOLD"
	ListingExpired  ListingStatus = "EXPIRED"
)

// Listing is a user-submitted used generator offered for resale. Purchases
// happen out of band; the shop only moderates and records the outcome.
type Listing struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID       string          `gorm:"size:64;not null;index" json:"user_id"`
	Email        string          `gorm:"size:160" json:"-"`
	Title        string          `gorm:"size:160;not null" json:"title"`
	Brand        string          `gorm:"size:80;index" json:"brand"`
	ModelName    string          `gorm:"column:model;size:80" json:"model"`
	PowerKVA     decimal.Decimal `gorm:"type:numeric(8,2)" json:"power_kva"`
	FuelType     string          `gorm:"size:20" json:"fuel_type"`
	Condition    string          `gorm:"size:20" json:"condition"`
	RunningHours int64           `json:"running_hours"`
	AskingPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"asking_price"`
	City         string          `gorm:"size:80;index" json:"city"`
	Phone        string          `gorm:"size:20" json:"phone"`
	Description  string          `gorm:"type:text" json:"description"`
	Images       []Image         `gorm:"serializer:json" json:"images"`

	Status          ListingStatus       `gorm:"size:20;not null;index" json:"status"`
	RejectionReason string              `gorm:"size:255" json:"rejection_reason,omitempty"`
	SoldPrice       decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"sold_price"`
	SoldAt          *time.Time          `json:"sold_at,omitempty"`
	ApprovedAt      *time.Time          `json:"approved_at,omitempty"`
	ExpiresAt       *time.Time          `gorm:"index" json:"expires_at,omitempty"`
}

func (Listing) TableName() string { return "listings" }
