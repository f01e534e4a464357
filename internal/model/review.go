package model

import (
	"time"

	"gorm.io/gorm"
)

// Review is one customer's rating of one product.
type Review struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      string      `gorm:"size:64;not null;uniqueIndex:idx_reviews_user_product" json:"user_id"`
	ProductKind ProductKind `gorm:"size:20;not null;uniqueIndex:idx_reviews_user_product;index:idx_reviews_product" json:"type"`
	ProductID   uint        `gorm:"not null;uniqueIndex:idx_reviews_user_product;index:idx_reviews_product" json:"product_id"`
	Rating      int         `gorm:"not null" json:"rating"`
	Title       string      `gorm:"size:120" json:"title"`
	Comment     string      `gorm:"type:text" json:"comment"`
	Verified    bool        `gorm:"not null" json:"verified_purchase"`
}

func (Review) TableName() string { return "reviews" }

// WishlistItem is a saved product.
type WishlistItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID      string      `gorm:"size:64;not null;uniqueIndex:idx_wishlist_user_product" json:"user_id"`
	ProductKind ProductKind `gorm:"size:20;not null;uniqueIndex:idx_wishlist_user_product" json:"type"`
	ProductID   uint        `gorm:"not null;uniqueIndex:idx_wishlist_user_product" json:"product_id"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }
