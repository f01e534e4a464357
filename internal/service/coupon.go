package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"genmart/internal/model"
	"genmart/internal/observability"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CouponResult is an applicable coupon and what it is worth for one cart.
type CouponResult struct {
	Coupon       *model.Coupon   `json:"coupon"`
	Discount     decimal.Decimal `json:"discount"`
	FreeShipping bool            `json:"free_shipping"`
	Message      string          `json:"message"`
}

// EvaluateCoupon runs the applicability checks in order and stops at the
// first failure. c is nil when the code matched nothing. userUses is the
// number of the user's live (not cancelled, not refunded) orders that
// already carry the coupon.
func EvaluateCoupon(c *model.Coupon, now time.Time, userUses int64, subtotal decimal.Decimal) (CouponResult, error) {
	switch {
	case c == nil:
		return CouponResult{}, rejectAs("coupon", "coupon code does not exist")
	case !c.IsActive:
		return CouponResult{}, rejectAs("coupon", "coupon is no longer active")
	case c.StartsAt != nil && c.StartsAt.After(now):
		return CouponResult{}, rejectAs("coupon", "coupon is not yet active")
	case c.ExpiresAt != nil && c.ExpiresAt.Before(now):
		return CouponResult{}, rejectAs("coupon", "coupon has expired")
	case c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit:
		return CouponResult{}, rejectAs("coupon", "coupon has reached its usage limit")
	case c.PerUserLimit > 0 && userUses >= c.PerUserLimit:
		return CouponResult{}, rejectAs("coupon", "you have already used this coupon %d time(s)", userUses)
	case c.MinOrder.Valid && subtotal.LessThan(c.MinOrder.Decimal):
		return CouponResult{}, rejectAs("coupon", "minimum order amount is %s", FormatRupees(c.MinOrder.Decimal))
	}
	return priceCoupon(c, subtotal), nil
}

func priceCoupon(c *model.Coupon, base decimal.Decimal) CouponResult {
	res := CouponResult{Coupon: c, Discount: couponDiscount(c, base)}
	if c.Kind == model.DiscountFreeShipping {
		res.FreeShipping = true
		res.Message = "coupon applied: free shipping"
		return res
	}
	res.Message = "coupon applied: you save " + FormatRupees(res.Discount)
	return res
}

func couponDiscount(c *model.Coupon, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	switch c.Kind {
	case model.DiscountPercentage:
		d := base.Mul(c.Value).Div(hundred).Round(2)
		if c.MaxDiscount.Valid && d.GreaterThan(c.MaxDiscount.Decimal) {
			d = c.MaxDiscount.Decimal
		}
		return decimal.Min(d, base)
	case model.DiscountFixedAmount:
		return decimal.Min(c.Value, base)
	}
	return decimal.Zero
}

// PricedLine is anything in a basket that has a family and a line total.
type PricedLine interface {
	Kind() model.ProductKind
	Total() decimal.Decimal
}

// EvaluateCouponForLines is EvaluateCoupon for a concrete basket: the
// minimum order is checked against the whole subtotal while the discount
// is computed over the lines the coupon applies to.
func EvaluateCouponForLines[L PricedLine](c *model.Coupon, now time.Time, userUses int64, lines []L) (CouponResult, error) {
	subtotal, eligible := decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
		if c != nil && c.AppliesTo(l.Kind()) {
			eligible = eligible.Add(l.Total())
		}
	}
	res, err := EvaluateCoupon(c, now, userUses, subtotal)
	if err != nil {
		return CouponResult{}, err
	}
	if !eligible.IsPositive() {
		return CouponResult{}, rejectAs("coupon", "coupon does not apply to items in your cart")
	}
	if !eligible.Equal(subtotal) {
		res = priceCoupon(c, eligible)
	}
	return res, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// findCoupon returns nil without error when no coupon has code.
func findCoupon(tx *gorm.DB, code string) (*model.Coupon, error) {
	var c model.Coupon
	err := tx.Where("code = ?", normalizeCode(code)).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// countUserCouponUses counts the user's orders with the coupon that still stand.
func countUserCouponUses(tx *gorm.DB, userID string, couponID uint) (int64, error) {
	var n int64
	err := tx.Model(&model.Order{}).
		Where("user_id = ? AND coupon_id = ? AND status NOT IN ?", userID, couponID,
			[]model.OrderStatus{model.OrderCancelled, model.OrderRefunded}).
		Count(&n).Error
	return n, err
}

// CouponServiceDeps bundles collaborators for the coupon service.
type CouponServiceDeps struct {
	DB     *gorm.DB
	Clock  func() time.Time
	Logger *zap.Logger
}

type CouponService struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewCouponService(deps CouponServiceDeps) (*CouponService, error) {
	if deps.DB == nil {
		return nil, errors.New("coupon service: db is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponService{db: deps.DB, clock: clock, logger: logger}, nil
}

// Validate checks code for actor against a bare subtotal. Family flags are
// not consulted here since no line items are known.
func (s *CouponService) Validate(ctx context.Context, actor Actor, code string, subtotal decimal.Decimal) (CouponResult, error) {
	if normalizeCode(code) == "" {
		return CouponResult{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if subtotal.IsNegative() {
		return CouponResult{}, fmt.Errorf("%w: subtotal must not be negative", ErrInvalidInput)
	}
	db := s.db.WithContext(ctx)
	c, err := findCoupon(db, code)
	if err != nil {
		return CouponResult{}, err
	}
	var uses int64
	if c != nil {
		if uses, err = countUserCouponUses(db, actor.UserID, c.ID); err != nil {
			return CouponResult{}, err
		}
	}
	res, err := EvaluateCoupon(c, s.clock(), uses, subtotal)
	if err != nil {
		observability.RecordCouponValidation("rejected")
		return CouponResult{}, err
	}
	observability.RecordCouponValidation("applied")
	return res, nil
}

// CouponInput is the admin payload for a new coupon.
type CouponInput struct {
	Code                string
	Description         string
	Kind                model.DiscountKind
	Value               decimal.Decimal
	MinOrder            decimal.NullDecimal
	MaxDiscount         decimal.NullDecimal
	UsageLimit          *int64
	PerUserLimit        *int64
	StartsAt            *time.Time
	ExpiresAt           *time.Time
	IsActive            *bool
	AppliesToGenerators *bool
	AppliesToParts      *bool
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// CreateCoupon stores a new coupon with its code upper-cased.
func (s *CouponService) CreateCoupon(ctx context.Context, actor Actor, in CouponInput) (*model.Coupon, error) {
	c := &model.Coupon{
		Code:                normalizeCode(in.Code),
		Description:         cleanText(in.Description),
		Kind:                in.Kind,
		Value:               in.Value,
		MinOrder:            in.MinOrder,
		MaxDiscount:         in.MaxDiscount,
		UsageLimit:          in.UsageLimit,
		PerUserLimit:        1,
		StartsAt:            in.StartsAt,
		ExpiresAt:           in.ExpiresAt,
		IsActive:            boolOr(in.IsActive, true),
		AppliesToGenerators: boolOr(in.AppliesToGenerators, true),
		AppliesToParts:      boolOr(in.AppliesToParts, true),
	}
	if in.PerUserLimit != nil {
		c.PerUserLimit = *in.PerUserLimit
	}
	if err := validateCoupon(c); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.clock(), actor, "coupon.create", "coupon", fmt.Sprint(c.ID), map[string]any{"code": c.Code})
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: coupon %s already exists", ErrConflict, c.Code)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func validateCoupon(c *model.Coupon) error {
	switch {
	case c.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	case !c.Kind.Valid():
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidInput, c.Kind)
	case !c.Value.IsPositive():
		return fmt.Errorf("%w: value must be greater than zero", ErrInvalidInput)
	case c.Kind == model.DiscountPercentage && c.Value.GreaterThan(hundred):
		return fmt.Errorf("%w: percentage must not exceed 100", ErrInvalidInput)
	case c.MaxDiscount.Valid && c.Kind != model.DiscountPercentage:
		return fmt.Errorf("%w: max_discount only applies to percentage coupons", ErrInvalidInput)
	case c.MaxDiscount.Valid && !c.MaxDiscount.Decimal.IsPositive():
		return fmt.Errorf("%w: max_discount must be greater than zero", ErrInvalidInput)
	case c.MinOrder.Valid && c.MinOrder.Decimal.IsNegative():
		return fmt.Errorf("%w: min_order_amount must not be negative", ErrInvalidInput)
	case c.UsageLimit != nil && *c.UsageLimit < 1:
		return fmt.Errorf("%w: usage_limit must be at least 1", ErrInvalidInput)
	case c.UsageLimit != nil && c.UsageCount > *c.UsageLimit:
		return fmt.Errorf("%w: usage_limit is below the current usage count %d", ErrInvalidInput, c.UsageCount)
	case c.PerUserLimit < 1:
		return fmt.Errorf("%w: per_user_limit must be at least 1", ErrInvalidInput)
	case c.StartsAt != nil && c.ExpiresAt != nil && c.ExpiresAt.Before(*c.StartsAt):
		return fmt.Errorf("%w: expires_at is before starts_at", ErrInvalidInput)
	case !c.AppliesToGenerators && !c.AppliesToParts:
		return fmt.Errorf("%w: coupon must apply to generators or parts", ErrInvalidInput)
	}
	return nil
}

// ListCoupons returns coupons newest first.
func (s *CouponService) ListCoupons(ctx context.Context, page Page) (PageResult[model.Coupon], error) {
	return findPage[model.Coupon](s.db.WithContext(ctx).Model(&model.Coupon{}), page, "id DESC")
}

// CouponPatch toggles a coupon or adjusts its limits. Nil fields are kept.
type CouponPatch struct {
	IsActive     *bool
	UsageLimit   *int64
	PerUserLimit *int64
	ExpiresAt    *time.Time
	Description  *string
}

func (s *CouponService) UpdateCoupon(ctx context.Context, actor Actor, id uint, patch CouponPatch) (*model.Coupon, error) {
	var c model.Coupon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return notFoundOr(err, "coupon")
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}
		if patch.UsageLimit != nil {
			c.UsageLimit = patch.UsageLimit
		}
		if patch.PerUserLimit != nil {
			c.PerUserLimit = *patch.PerUserLimit
		}
		if patch.ExpiresAt != nil {
			c.ExpiresAt = patch.ExpiresAt
		}
		if patch.Description != nil {
			c.Description = cleanText(*patch.Description)
		}
		if err := validateCoupon(&c); err != nil {
			return err
		}
		if err := tx.Model(&c).Select("is_active", "usage_limit", "per_user_limit", "expires_at", "description", "updated_at").Updates(&c).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.clock(), actor, "coupon.update", "coupon", fmt.Sprint(c.ID), map[string]any{
			"is_active": c.IsActive, "usage_limit": c.UsageLimit, "per_user_limit": c.PerUserLimit,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}
