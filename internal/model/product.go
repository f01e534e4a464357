package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductKind names one of the two catalog families.
type ProductKind string

const (
	KindGenerator ProductKind = "GENERATOR"
	KindPart      ProductKind = "PART"
)

// ParseProductKind accepts the upper-case enum as well as the URL forms
// ("generator", "generators", "part", "parts").
func ParseProductKind(s string) (ProductKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GENERATOR", "GENERATORS":
		return KindGenerator, true
	case "PART", "PARTS":
		return KindPart, true
	}
	return "", false
}

// Image is what the hosted media API hands back after an upload.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// ProductFields is shared by generators and parts.
type ProductFields struct {
	Name              string              `gorm:"size:160;not null" json:"name"`
	Slug              string              `gorm:"size:180;uniqueIndex;not null" json:"slug"`
	SKU               *string             `gorm:"size:64;uniqueIndex" json:"sku,omitempty"`
	Brand             string              `gorm:"size:80;index" json:"brand"`
	Price             decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	CompareAtPrice    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"compare_at_price"`
	Stock             int64               `gorm:"not null;default:0" json:"stock"`
	LowStockThreshold int64               `gorm:"not null" json:"low_stock_threshold"`
	IsActive          bool                `gorm:"not null;index" json:"is_active"`
	CategoryID        *uint               `gorm:"index" json:"category_id,omitempty"`
	Images            []Image             `gorm:"serializer:json" json:"images"`
	Description       string              `gorm:"type:text" json:"description"`
}

// Generator is a complete generator set sold from the storefront.
type Generator struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductFields
	PowerKVA decimal.Decimal `gorm:"type:numeric(8,2)" json:"power_kva"`
	FuelType string          `gorm:"size:20" json:"fuel_type"`
}

func (Generator) TableName() string { return "generators" }

// Part is a spare part or consumable.
type Part struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductFields
	CompatibleModels string `gorm:"size:255" json:"compatible_models"`
}

func (Part) TableName() string { return "parts" }

// Product lets order and catalog code treat both families alike.
type Product interface {
	Kind() ProductKind
	ProductID() uint
	Fields() *ProductFields
}

func (g *Generator) Kind() ProductKind      { return KindGenerator }
func (g *Generator) ProductID() uint        { return g.ID }
func (g *Generator) Fields() *ProductFields { return &g.ProductFields }

func (p *Part) Kind() ProductKind      { return KindPart }
func (p *Part) ProductID() uint        { return p.ID }
func (p *Part) Fields() *ProductFields { return &p.ProductFields }

// NewProduct returns an empty model of the given family, usable both as a
// query destination and as the gorm Model for updates.
func NewProduct(kind ProductKind) Product {
	if kind == KindPart {
		return &Part{}
	}
	return &Generator{}
}

// LowStock reports whether the product is at or below its reorder threshold.
func (f ProductFields) LowStock() bool { return f.Stock <= f.LowStockThreshold }

// Category groups products of one family.
type Category struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name   string      `gorm:"size:120;not null" json:"name"`
	Slug   string      `gorm:"size:140;not null;uniqueIndex:idx_categories_family_slug" json:"slug"`
	Family ProductKind `gorm:"size:20;not null;uniqueIndex:idx_categories_family_slug" json:"family"`
}

func (Category) TableName() string { return "categories" }
