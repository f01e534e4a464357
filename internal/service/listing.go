package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"genmart/internal/model"
	"genmart/internal/queue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListingTTL is how long an approved listing stays public.
const ListingTTL = 60 * 24 * time.Hour

// ListingInput is a user's resale submission.
type ListingInput struct {
	Title        string
	Brand        string
	Model        string
	PowerKVA     decimal.Decimal
	FuelType     string
	Condition    string
	RunningHours int64
	AskingPrice  decimal.Decimal
	City         string
	Phone        string
	Description  string
	Images       []model.Image
}

// ListingFilter narrows the public marketplace.
type ListingFilter struct {
	Brand string
	City  string
	Page  Page
}

// ListingModeration is an admin decision on a listing.
type ListingModeration struct {
	Action    string
	Reason    string
	SoldPrice decimal.NullDecimal
}

// ListingServiceDeps bundles collaborators for the marketplace service.
type ListingServiceDeps struct {
	DB     *gorm.DB
	Events EventPublisher
	Clock  func() time.Time
	Logger *zap.Logger
}

type ListingService struct {
	db     *gorm.DB
	events EventPublisher
	clock  func() time.Time
	logger *zap.Logger
}

func NewListingService(deps ListingServiceDeps) (*ListingService, error) {
	if deps.DB == nil {
		return nil, errors.New("listing service: db is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{db: deps.DB, events: deps.Events, clock: clock, logger: logger}, nil
}

func listingEvent(now time.Time, typ string, l *model.Listing) queue.Event {
	ev := newEvent(now, typ, "listing", fmt.Sprint(l.ID))
	ev.UserID = l.UserID
	ev.Email = l.Email
	ev.Reference = l.Title
	ev.Status = string(l.Status)
	ev.Payload = map[string]string{}
	if l.RejectionReason != "" {
		ev.Payload["reason"] = l.RejectionReason
	}
	return ev
}

// Create submits a listing for moderation.
func (s *ListingService) Create(ctx context.Context, actor Actor, in ListingInput) (*model.Listing, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	l := &model.Listing{
		UserID:       actor.UserID,
		Email:        actor.Email,
		Title:        cleanText(in.Title),
		Brand:        cleanText(in.Brand),
		ModelName:    cleanText(in.Model),
		PowerKVA:     in.PowerKVA,
		FuelType:     strings.ToUpper(strings.TrimSpace(in.FuelType)),
		Condition:    strings.ToUpper(strings.TrimSpace(in.Condition)),
		RunningHours: in.RunningHours,
		AskingPrice:  in.AskingPrice,
		City:         cleanText(in.City),
		Phone:        strings.TrimSpace(in.Phone),
		Description:  cleanText(in.Description),
		Images:       in.Images,
		Status:       model.ListingPending,
	}
	switch {
	case l.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case !l.AskingPrice.IsPositive():
		return nil, fmt.Errorf("%w: asking price must be greater than zero", ErrInvalidInput)
	case l.RunningHours < 0:
		return nil, fmt.Errorf("%w: running hours must not be negative", ErrInvalidInput)
	case l.PowerKVA.IsNegative():
		return nil, fmt.Errorf("%w: power must not be negative", ErrInvalidInput)
	}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, listingEvent(s.clock(), queue.EventListingCreated, l))
	return l, nil
}

// ListPublic returns approved listings that have not expired.
func (s *ListingService) ListPublic(ctx context.Context, f ListingFilter) (PageResult[model.Listing], error) {
	q := s.db.WithContext(ctx).Model(&model.Listing{}).
		Where("status = ? AND (expires_at IS NULL OR expires_at > ?)", model.ListingApproved, s.clock())
	if brand := strings.TrimSpace(f.Brand); brand != "" {
		q = q.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}
	if city := strings.TrimSpace(f.City); city != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(city))
	}
	return findPage[model.Listing](q, f.Page, "approved_at DESC, id DESC")
}

func (s *ListingService) ListMine(ctx context.Context, actor Actor, page Page) (PageResult[model.Listing], error) {
	q := s.db.WithContext(ctx).Model(&model.Listing{}).Where("user_id = ?", actor.UserID)
	return findPage[model.Listing](q, page, "created_at DESC, id DESC")
}

// ListAll is the moderation queue.
func (s *ListingService) ListAll(ctx context.Context, status string, page Page) (PageResult[model.Listing], error) {
	q := s.db.WithContext(ctx).Model(&model.Listing{})
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		q = q.Where("status = ?", status)
	}
	return findPage[model.Listing](q, page, "created_at DESC, id DESC")
}

// Get hides anything but live approved listings from users other than the
// owner and staff.
func (s *ListingService) Get(ctx context.Context, actor Actor, id uint) (*model.Listing, error) {
	var l model.Listing
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFoundOr(err, "listing")
	}
	if actor.CanSee(l.UserID) {
		return &l, nil
	}
	if l.Status != model.ListingApproved || (l.ExpiresAt != nil && !l.ExpiresAt.After(s.clock())) {
		return nil, fmt.Errorf("%w: listing", ErrNotFound)
	}
	return &l, nil
}

// Moderate applies approve, reject, sold or expire.
func (s *ListingService) Moderate(ctx context.Context, actor Actor, id uint, m ListingModeration) (*model.Listing, error) {
	if actor.Role != RoleAdmin {
		return nil, ErrUnauthorized
	}
	now := s.clock()
	action := strings.ToLower(strings.TrimSpace(m.Action))

	var (
		from    model.ListingStatus
		to      model.ListingStatus
		updates = map[string]any{}
	)
	switch action {
	case "approve":
		from, to = model.ListingPending, model.ListingApproved
		expires := now.Add(ListingTTL)
		updates["approved_at"] = now
		updates["expires_at"] = expires
	case "reject":
		reason := cleanText(m.Reason)
		if reason == "" {
			return nil, fmt.Errorf("%w: a rejection reason is required", ErrInvalidInput)
		}
		from, to = model.ListingPending, model.ListingRejected
		updates["rejection_reason"] = reason
	case "sold":
		if !m.SoldPrice.Valid || !m.SoldPrice.Decimal.IsPositive() {
			return nil, fmt.Errorf("%w: sold price must be greater than zero", ErrInvalidInput)
		}
		from, to = model.ListingApproved, model.ListingSold
		updates["sold_price"] = m.SoldPrice
		updates["sold_at"] = now
	case "expire":
		from, to = model.ListingApproved, model.ListingExpired
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, m.Action)
	}
	updates["status"] = to

	var out model.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, id).Error; err != nil {
			return notFoundOr(err, "listing")
		}
		if out.Status != from {
			return reject("listing is %s and cannot be marked %s", out.Status, to)
		}
		res := tx.Model(&model.Listing{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: listing changed concurrently", ErrConflict)
		}
		if err := tx.First(&out, id).Error; err != nil {
			return err
		}
		return writeAudit(tx, now, actor, "listing."+action, "listing", fmt.Sprint(id), map[string]any{
			"from": from, "to": to, "reason": out.RejectionReason,
		})
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, listingEvent(now, queue.EventListingModerated, &out))
	return &out, nil
}
