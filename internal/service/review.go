package service

import (
	"context"
	"errors"
	"fmt"

	"genmart/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewInput is a customer's rating of one product.
type ReviewInput struct {
	Type      model.ProductKind
	ProductID uint
	Rating    int
	Title     string
	Comment   string
}

// ReviewSummary is a product's reviews plus its aggregate rating.
type ReviewSummary struct {
	Reviews []model.Review `json:"reviews"`
	Average float64        `json:"average_rating"`
	Count   int64          `json:"count"`
}

type ReviewService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewReviewService(db *gorm.DB, logger *zap.Logger) (*ReviewService, error) {
	if db == nil {
		return nil, errors.New("review service: db is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{db: db, logger: logger}, nil
}

func productExists(tx *gorm.DB, kind model.ProductKind, id uint) error {
	var n int64
	if err := tx.Model(model.NewProduct(kind)).Where("id = ? AND is_active = ?", id, true).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: product", ErrNotFound)
	}
	return nil
}

func productColumn(kind model.ProductKind) string {
	if kind == model.KindPart {
		return "part_id"
	}
	return "generator_id"
}

// hasDelivered reports whether userID received the product in a delivered order.
func hasDelivered(tx *gorm.DB, userID string, kind model.ProductKind, id uint) (bool, error) {
	var n int64
	err := tx.Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id AND orders.deleted_at IS NULL").
		Where("orders.user_id = ? AND orders.status = ?", userID, model.OrderDelivered).
		Where("order_items."+productColumn(kind)+" = ?", id).
		Count(&n).Error
	return n > 0, err
}

// Create stores one review per user and product. A second review is a conflict.
func (s *ReviewService) Create(ctx context.Context, actor Actor, in ReviewInput) (*model.Review, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if in.Type != model.KindGenerator && in.Type != model.KindPart {
		return nil, fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, in.Type)
	}
	db := s.db.WithContext(ctx)
	if err := productExists(db, in.Type, in.ProductID); err != nil {
		return nil, err
	}
	verified, err := hasDelivered(db, actor.UserID, in.Type, in.ProductID)
	if err != nil {
		return nil, err
	}
	r := &model.Review{
		UserID:      actor.UserID,
		ProductKind: in.Type,
		ProductID:   in.ProductID,
		Rating:      in.Rating,
		Title:       cleanText(in.Title),
		Comment:     cleanText(in.Comment),
		Verified:    verified,
	}
	if err := db.Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: you have already reviewed this product", ErrConflict)
		}
		return nil, err
	}
	return r, nil
}

// ForProduct lists a product's reviews, newest first, with the average rating.
func (s *ReviewService) ForProduct(ctx context.Context, kind model.ProductKind, id uint) (ReviewSummary, error) {
	db := s.db.WithContext(ctx)
	out := ReviewSummary{Reviews: []model.Review{}}
	q := db.Model(&model.Review{}).Where("product_kind = ? AND product_id = ?", kind, id)

	var agg struct {
		AvgRating   float64
		ReviewCount int64
	}
	if err := q.Session(&gorm.Session{}).Select("COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS review_count").Scan(&agg).Error; err != nil {
		return out, err
	}
	if err := q.Session(&gorm.Session{}).Order("created_at DESC, id DESC").Limit(maxPageSize).Find(&out.Reviews).Error; err != nil {
		return out, err
	}
	out.Average = agg.AvgRating
	out.Count = agg.ReviewCount
	return out, nil
}

// WishlistEntry is a saved product resolved against the catalog.
type WishlistEntry struct {
	model.WishlistItem
	Product *ProductView `json:"product,omitempty"`
}

// Wishlist returns the actor's saved items; products since removed from
// the catalog are returned without a product body.
func (s *ReviewService) Wishlist(ctx context.Context, actor Actor) ([]WishlistEntry, error) {
	db := s.db.WithContext(ctx)
	var items []model.WishlistItem
	if err := db.Where("user_id = ?", actor.UserID).Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	lines := make([]CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, CartLine{Type: it.ProductKind, ProductID: it.ProductID})
	}
	live, err := loadActiveProducts(db, lines)
	if err != nil {
		return nil, err
	}
	out := make([]WishlistEntry, 0, len(items))
	for _, it := range items {
		entry := WishlistEntry{WishlistItem: it}
		if p, ok := live[productKey{it.ProductKind, it.ProductID}]; ok {
			v := newProductView(p, nil)
			entry.Product = &v
		}
		out = append(out, entry)
	}
	return out, nil
}

// AddToWishlist is idempotent: saving the same product twice returns the
// existing entry.
func (s *ReviewService) AddToWishlist(ctx context.Context, actor Actor, kind model.ProductKind, id uint) (*model.WishlistItem, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if kind != model.KindGenerator && kind != model.KindPart {
		return nil, fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, kind)
	}
	db := s.db.WithContext(ctx)
	if err := productExists(db, kind, id); err != nil {
		return nil, err
	}
	item := model.WishlistItem{UserID: actor.UserID, ProductKind: kind, ProductID: id}
	err := db.Where(&item).FirstOrCreate(&item).Error
	if isUniqueViolation(err) {
		err = db.Where(&model.WishlistItem{UserID: actor.UserID, ProductKind: kind, ProductID: id}).First(&item).Error
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveFromWishlist deletes an entry owned by actor.
func (s *ReviewService) RemoveFromWishlist(ctx context.Context, actor Actor, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.UserID).Delete(&model.WishlistItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: wishlist item", ErrNotFound)
	}
	return nil
}
