package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"genmart/internal/model"
	"genmart/internal/observability"
	"genmart/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:        {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed:      {model.OrderProcessing, model.OrderCancelled, model.OrderRefunded},
	model.OrderProcessing:     {model.OrderShipped, model.OrderCancelled, model.OrderRefunded},
	model.OrderShipped:        {model.OrderOutForDelivery, model.OrderDelivered, model.OrderRefunded},
	model.OrderOutForDelivery: {model.OrderDelivered, model.OrderRefunded},
	model.OrderDelivered:      {model.OrderRefunded},
}

func canTransitionOrder(from, to model.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func knownOrderStatus(s model.OrderStatus) bool {
	if _, ok := orderTransitions[s]; ok {
		return true
	}
	return s == model.OrderCancelled || s == model.OrderRefunded
}

// SettingsProvider yields the settings in force for a request.
type SettingsProvider interface {
	Get(ctx context.Context) (Settings, error)
}

// CheckoutLocker serialises concurrent checkouts of one user.
type CheckoutLocker interface {
	Acquire(ctx context.Context, userID, token string) (bool, error)
	Release(ctx context.Context, userID, token string) error
}

// IdempotencyStore maps a client Idempotency-Key to the order it produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, key string) (uint, bool, error)
	Remember(ctx context.Context, userID, key string, orderID uint, orderNo string) error
}

// OrderServiceDeps bundles collaborators for the order service. Locker,
// Idempotency and Events are optional.
type OrderServiceDeps struct {
	DB          *gorm.DB
	Settings    SettingsProvider
	Locker      CheckoutLocker
	Idempotency IdempotencyStore
	Events      EventPublisher
	Clock       func() time.Time
	Logger      *zap.Logger
}

type OrderService struct {
	db          *gorm.DB
	settings    SettingsProvider
	locker      CheckoutLocker
	idempotency IdempotencyStore
	events      EventPublisher
	clock       func() time.Time
	logger      *zap.Logger
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.DB == nil {
		return nil, errors.New("order service: db is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("order service: settings provider is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:          deps.DB,
		settings:    deps.Settings,
		locker:      deps.Locker,
		idempotency: deps.Idempotency,
		events:      deps.Events,
		clock:       clock,
		logger:      logger,
	}, nil
}

// OrderLineInput is one requested product and quantity.
type OrderLineInput struct {
	Type      model.ProductKind
	ProductID uint
	Quantity  int64
}

// PlaceOrderInput is a checkout request.
type PlaceOrderInput struct {
	Lines           []OrderLineInput
	ShippingAddress model.Address
	PaymentMethod   model.PaymentMethod
	CouponCode      string
	Notes           string
	IdempotencyKey  string
}

// PlaceOrderResult is the created order. Replayed is set when the
// Idempotency-Key had already produced this order.
type PlaceOrderResult struct {
	Order    *model.Order
	Replayed bool
}

func mergeLines(in []OrderLineInput) ([]OrderLineInput, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}
	type key struct {
		kind model.ProductKind
		id   uint
	}
	merged := make(map[key]int64, len(in))
	for _, l := range in {
		if l.Type != model.KindGenerator && l.Type != model.KindPart {
			return nil, fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, l.Type)
		}
		if l.ProductID == 0 {
			return nil, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
		}
		merged[key{l.Type, l.ProductID}] += l.Quantity
	}
	out := make([]OrderLineInput, 0, len(merged))
	for k, q := range merged {
		out = append(out, OrderLineInput{Type: k.kind, ProductID: k.id, Quantity: q})
	}
	// fixed row order keeps concurrent checkouts from deadlocking each other
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func cleanAddress(a model.Address) (model.Address, error) {
	a = model.Address{
		FullName:   cleanText(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Line1:      cleanText(a.Line1),
		Line2:      cleanText(a.Line2),
		City:       cleanText(a.City),
		Province:   cleanText(a.Province),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
	switch {
	case a.FullName == "":
		return a, fmt.Errorf("%w: shipping full name is required", ErrInvalidInput)
	case a.Phone == "":
		return a, fmt.Errorf("%w: shipping phone is required", ErrInvalidInput)
	case a.Line1 == "":
		return a, fmt.Errorf("%w: shipping address line is required", ErrInvalidInput)
	case a.City == "":
		return a, fmt.Errorf("%w: shipping city is required", ErrInvalidInput)
	}
	return a, nil
}

// PlaceOrder turns a cart into a PENDING order. Stock is decremented with
// one conditional update per line and the coupon usage counter is bumped
// in the same transaction, so either the whole order lands or nothing does.
func (s *OrderService) PlaceOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (PlaceOrderResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "order.place")
	defer span.End()

	res, err := s.placeOrder(ctx, actor, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if rej, ok := IsRejection(err); ok {
			observability.RecordOrderRejection(rej.Code)
		} else if errors.Is(err, ErrConflict) {
			observability.RecordOrderRejection("lock")
		}
		return res, err
	}
	span.SetAttributes(
		attribute.String("order.no", res.Order.OrderNo),
		attribute.Bool("order.replayed", res.Replayed),
	)
	return res, nil
}

func (s *OrderService) placeOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (PlaceOrderResult, error) {
	if actor.UserID == "" {
		return PlaceOrderResult{}, ErrUnauthorized
	}
	lines, err := mergeLines(in.Lines)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	address, err := cleanAddress(in.ShippingAddress)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	idemKey := strings.TrimSpace(in.IdempotencyKey)

	if idemKey != "" && s.idempotency != nil {
		orderID, found, err := s.idempotency.Lookup(ctx, actor.UserID, idemKey)
		if err != nil {
			s.logger.Warn("idempotency lookup failed", zap.String("user_id", actor.UserID), zap.Error(err))
		} else if found {
			order, err := s.GetOrder(ctx, actor, orderID)
			if err != nil {
				return PlaceOrderResult{}, err
			}
			return PlaceOrderResult{Order: order, Replayed: true}, nil
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("resolve settings: %w", err)
	}
	if !settings.PaymentEnabled(in.PaymentMethod) {
		return PlaceOrderResult{}, rejectAs("payment", "payment method %s is not available", in.PaymentMethod)
	}

	if s.locker != nil {
		token := uuid.NewString()
		acquired, err := s.locker.Acquire(ctx, actor.UserID, token)
		switch {
		case err != nil:
			// stock and coupon limits are enforced inside the transaction
			s.logger.Warn("checkout lock unavailable", zap.String("user_id", actor.UserID), zap.Error(err))
		case !acquired:
			return PlaceOrderResult{}, fmt.Errorf("%w: checkout already in progress", ErrConflict)
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), actor.UserID, token); err != nil {
					s.logger.Warn("checkout lock release failed", zap.String("user_id", actor.UserID), zap.Error(err))
				}
			}()
		}
	}

	now := s.clock()
	order := &model.Order{
		OrderNo:         humanNumber("GM", now),
		UserID:          actor.UserID,
		Email:           actor.Email,
		Status:          model.OrderPending,
		PaymentStatus:   model.PaymentPending,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: address,
		Notes:           cleanText(in.Notes),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot := make([]model.OrderLine, 0, len(lines))
		for _, l := range lines {
			p, err := reserveStock(tx, l)
			if err != nil {
				return err
			}
			snapshot = append(snapshot, model.NewOrderLine(p, l.Quantity))
		}

		subtotal := decimal.Zero
		for _, l := range snapshot {
			subtotal = subtotal.Add(l.Total())
			order.Items = append(order.Items, l.Item())
		}

		discount := decimal.Zero
		freeShipping := false
		if code := normalizeCode(in.CouponCode); code != "" {
			applied, err := s.applyCoupon(tx, actor, code, now, snapshot)
			if err != nil {
				return err
			}
			order.CouponID = &applied.Coupon.ID
			order.CouponCode = applied.Coupon.Code
			discount = applied.Discount
			freeShipping = applied.FreeShipping
		}

		order.Subtotal = subtotal
		order.Discount = discount
		order.ShippingFee = settings.ShippingFor(subtotal, freeShipping)
		order.CODFee = settings.CODFeeFor(in.PaymentMethod)
		order.Total = subtotal.Sub(discount).Add(order.ShippingFee).Add(order.CODFee)

		if in.PaymentMethod == model.PayCOD && settings.CODMaxOrder.IsPositive() && order.Total.GreaterThan(settings.CODMaxOrder) {
			return rejectAs("payment", "cash on delivery is only available for orders up to %s", FormatRupees(settings.CODMaxOrder))
		}

		return tx.Create(order).Error
	})
	if err != nil {
		return PlaceOrderResult{}, err
	}

	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.Remember(ctx, actor.UserID, idemKey, order.ID, order.OrderNo); err != nil {
			s.logger.Warn("idempotency record failed", zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}

	ev := orderEvent(now, queue.EventOrderCreated, order)
	ev.Payload["total"] = order.Total.StringFixed(2)
	ev.Payload["payment_method"] = string(order.PaymentMethod)
	publish(ctx, s.events, s.logger, ev)
	observability.RecordOrderPlaced(string(order.PaymentMethod))
	s.logger.Info("order placed",
		zap.String("order_no", order.OrderNo),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return PlaceOrderResult{Order: order}, nil
}

// reserveStock loads the product and decrements its stock only if enough
// units remain. The check and the write are a single statement.
func reserveStock(tx *gorm.DB, l OrderLineInput) (model.Product, error) {
	p := model.NewProduct(l.Type)
	if err := tx.First(p, l.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejectAs("stock", "a product in your cart is no longer available")
		}
		return nil, err
	}
	f := p.Fields()
	if !f.IsActive {
		return nil, rejectAs("stock", "%s is no longer available", f.Name)
	}
	if f.Stock < l.Quantity {
		return nil, insufficientStock(f.Name, f.Stock)
	}
	res := tx.Model(model.NewProduct(l.Type)).
		Where("id = ? AND stock >= ? AND is_active = ?", l.ProductID, l.Quantity, true).
		Update("stock", gorm.Expr("stock - ?", l.Quantity))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, insufficientStock(f.Name, 0)
	}
	return p, nil
}

func insufficientStock(name string, left int64) error {
	if left <= 0 {
		return rejectAs("stock", "%s is out of stock", name)
	}
	return rejectAs("stock", "only %d of %s left in stock", left, name)
}

// applyCoupon evaluates the coupon against the snapshot and claims one use.
// The per-user limit is checked again once the claim holds the row.
func (s *OrderService) applyCoupon(tx *gorm.DB, actor Actor, code string, now time.Time, lines []model.OrderLine) (CouponResult, error) {
	c, err := findCoupon(tx, code)
	if err != nil {
		return CouponResult{}, err
	}
	var uses int64
	if c != nil {
		if uses, err = countUserCouponUses(tx, actor.UserID, c.ID); err != nil {
			return CouponResult{}, err
		}
	}
	res, err := EvaluateCouponForLines(c, now, uses, lines)
	if err != nil {
		return CouponResult{}, err
	}
	claim := tx.Model(&model.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", c.ID).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if claim.Error != nil {
		return CouponResult{}, claim.Error
	}
	if claim.RowsAffected == 0 {
		return CouponResult{}, rejectAs("coupon", "coupon has reached its usage limit")
	}
	// The claim holds the coupon row until commit, so a concurrent checkout
	// by the same user waits above and recounts here with ours visible.
	if c.PerUserLimit > 0 {
		if uses, err = countUserCouponUses(tx, actor.UserID, c.ID); err != nil {
			return CouponResult{}, err
		}
		if uses >= c.PerUserLimit {
			return CouponResult{}, rejectAs("coupon", "you have already used this coupon %d time(s)", uses)
		}
	}
	return res, nil
}

// restoreStock puts every line's quantity back on its product, including
// products that were deactivated or deleted since the order was placed.
func restoreStock(tx *gorm.DB, items []model.OrderItem) error {
	for _, item := range items {
		kind, id := item.ProductRef()
		if id == 0 {
			continue
		}
		err := tx.Unscoped().Model(model.NewProduct(kind)).
			Where("id = ?", id).
			Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("restore stock of %s %d: %w", kind, id, err)
		}
	}
	return nil
}

func orderEvent(now time.Time, typ string, o *model.Order) queue.Event {
	ev := newEvent(now, typ, "order", fmt.Sprint(o.ID))
	ev.UserID = o.UserID
	ev.Email = o.Email
	ev.Reference = o.OrderNo
	ev.Status = string(o.Status)
	ev.Payload = map[string]string{"payment_status": string(o.PaymentStatus)}
	return ev
}

func (s *OrderService) loadOrder(tx *gorm.DB, actor Actor, id uint) (*model.Order, error) {
	var o model.Order
	if err := tx.Preload("Items").First(&o, id).Error; err != nil {
		return nil, notFoundOr(err, "order")
	}
	if !actor.CanSee(o.UserID) {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return &o, nil
}

// GetOrder returns the order if actor owns it or is staff.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uint) (*model.Order, error) {
	return s.loadOrder(s.db.WithContext(ctx), actor, id)
}

// ListMine returns the actor's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, actor Actor, page Page) (PageResult[model.Order], error) {
	q := s.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", actor.UserID)
	return findPage[model.Order](q, page, "created_at DESC, id DESC", "Items")
}

// ListAll is the back-office order list, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status string, page Page) (PageResult[model.Order], error) {
	q := s.db.WithContext(ctx).Model(&model.Order{})
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		if !knownOrderStatus(model.OrderStatus(status)) {
			return PageResult[model.Order]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		q = q.Where("status = ?", status)
	}
	return findPage[model.Order](q, page, "created_at DESC, id DESC", "Items")
}

// CancelOrder is the customer's self-service cancellation. Only PENDING
// orders qualify; anything else is refused and left untouched.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, id uint, reason string) (*model.Order, error) {
	now := s.clock()
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadOrder(tx, actor, id)
		if err != nil {
			return err
		}
		if o.Status != model.OrderPending {
			return reject("order can only be cancelled while pending")
		}
		if err := cancelInTx(tx, o, model.OrderPending, cleanText(reason), now); err != nil {
			return err
		}
		if err := writeAudit(tx, now, actor, "order.cancel", "order", fmt.Sprint(o.ID), map[string]any{"reason": o.CancelReason}); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, orderEvent(now, queue.EventOrderCancelled, order))
	observability.RecordOrderTransition(string(model.OrderCancelled))
	return order, nil
}

// cancelInTx flips o from `from` to CANCELLED with a guarded update, then
// restores stock. A concurrent change of status makes the update miss and
// the cancellation is refused.
func cancelInTx(tx *gorm.DB, o *model.Order, from model.OrderStatus, reason string, now time.Time) error {
	payment := o.PaymentStatus
	if payment == model.PaymentPaid {
		payment = model.PaymentRefunded
	}
	res := tx.Model(&model.Order{}).
		Where("id = ? AND status = ?", o.ID, from).
		Updates(map[string]any{
			"status":         model.OrderCancelled,
			"payment_status": payment,
			"cancelled_at":   now,
			"cancel_reason":  reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return reject("order can only be cancelled while pending")
	}
	if err := restoreStock(tx, o.Items); err != nil {
		return err
	}
	o.Status = model.OrderCancelled
	o.PaymentStatus = payment
	o.CancelledAt = &now
	o.CancelReason = reason
	return nil
}

// TransitionOrder moves an order along the fulfilment table on behalf of staff.
func (s *OrderService) TransitionOrder(ctx context.Context, actor Actor, id uint, target model.OrderStatus, note string) (*model.Order, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}
	target = model.OrderStatus(strings.ToUpper(strings.TrimSpace(string(target))))
	if !knownOrderStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}
	note = cleanText(note)
	now := s.clock()

	var (
		order *model.Order
		from  model.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadOrder(tx, actor, id)
		if err != nil {
			return err
		}
		from = o.Status
		if !canTransitionOrder(from, target) {
			return reject("order cannot move from %s to %s", from, target)
		}

		if target == model.OrderCancelled {
			if err := cancelInTx(tx, o, from, note, now); err != nil {
				return err
			}
		} else {
			updates := map[string]any{"status": target}
			switch target {
			case model.OrderRefunded:
				updates["payment_status"] = model.PaymentRefunded
			case model.OrderDelivered:
				updates["delivered_at"] = now
				if o.PaymentMethod == model.PayCOD {
					updates["payment_status"] = model.PaymentPaid
				}
			}
			res := tx.Model(&model.Order{}).Where("id = ? AND status = ?", o.ID, from).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: order changed concurrently", ErrConflict)
			}
			if err := tx.Preload("Items").First(o, o.ID).Error; err != nil {
				return err
			}
		}
		if err := writeAudit(tx, now, actor, "order.status", "order", fmt.Sprint(o.ID), map[string]any{
			"from": from, "to": target, "note": note,
		}); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := orderEvent(now, queue.EventOrderStatusChanged, order)
	ev.Payload["previous_status"] = string(from)
	if note != "" {
		ev.Payload["note"] = note
	}
	publish(ctx, s.events, s.logger, ev)
	observability.RecordOrderTransition(string(target))
	return order, nil
}

// UpdatePaymentStatus records a manual payment reconciliation.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actor Actor, id uint, status model.PaymentStatus) (*model.Order, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}
	status = model.PaymentStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, status)
	}
	now := s.clock()
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadOrder(tx, actor, id)
		if err != nil {
			return err
		}
		if o.Status == model.OrderCancelled && status == model.PaymentPaid {
			return reject("a cancelled order cannot be marked paid")
		}
		previous := o.PaymentStatus
		if err := tx.Model(o).Update("payment_status", status).Error; err != nil {
			return err
		}
		o.PaymentStatus = status
		order = o
		return writeAudit(tx, now, actor, "order.payment", "order", fmt.Sprint(o.ID), map[string]any{
			"from": previous, "to": status,
		})
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, orderEvent(now, queue.EventOrderPaymentUpdated, order))
	return order, nil
}
