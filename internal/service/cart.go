package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genmart/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CartLine is one product in a client-held cart. MaxStock is the last
// stock count the client saw and caps Quantity.
type CartLine struct {
	ProductID uint              `json:"product_id"`
	Type      model.ProductKind `json:"type"`
	Name      string            `json:"name,omitempty"`
	Quantity  int64             `json:"quantity"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
	MaxStock  int64             `json:"max_stock"`
}

func (l CartLine) Kind() model.ProductKind { return l.Type }

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

func (l CartLine) same(o CartLine) bool {
	return l.Type == o.Type && l.ProductID == o.ProductID
}

func clampQuantity(q, max int64) int64 {
	if q > max {
		q = max
	}
	if q < 1 {
		q = 1
	}
	return q
}

// Cart is a value: every operation returns a new Cart.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Add merges line into the cart, summing quantities for the same product
// and clamping to [1, MaxStock]. Lines without stock are not added.
func (c Cart) Add(line CartLine) Cart {
	out := Cart{Lines: make([]CartLine, 0, len(c.Lines)+1)}
	merged := false
	for _, l := range c.Lines {
		if l.same(line) {
			l.MaxStock = line.MaxStock
			l.UnitPrice = line.UnitPrice
			l.Quantity += line.Quantity
			merged = true
		}
		if l.MaxStock <= 0 {
			continue
		}
		l.Quantity = clampQuantity(l.Quantity, l.MaxStock)
		out.Lines = append(out.Lines, l)
	}
	if !merged && line.MaxStock > 0 {
		line.Quantity = clampQuantity(line.Quantity, line.MaxStock)
		out.Lines = append(out.Lines, line)
	}
	return out
}

// SetQuantity replaces the quantity of one product, clamped to its stock.
func (c Cart) SetQuantity(kind model.ProductKind, productID uint, quantity int64) Cart {
	out := Cart{Lines: make([]CartLine, 0, len(c.Lines))}
	for _, l := range c.Lines {
		if l.Type == kind && l.ProductID == productID {
			l.Quantity = quantity
		}
		if l.MaxStock <= 0 {
			continue
		}
		l.Quantity = clampQuantity(l.Quantity, l.MaxStock)
		out.Lines = append(out.Lines, l)
	}
	return out
}

// Remove drops one product from the cart.
func (c Cart) Remove(kind model.ProductKind, productID uint) Cart {
	out := Cart{Lines: make([]CartLine, 0, len(c.Lines))}
	for _, l := range c.Lines {
		if l.Type == kind && l.ProductID == productID {
			continue
		}
		out.Lines = append(out.Lines, l)
	}
	return out
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// QuoteRequest asks for a priced view of a client cart.
type QuoteRequest struct {
	Lines         []CartLine
	CouponCode    string
	PaymentMethod model.PaymentMethod
}

// Quote is the cart re-priced against the live catalog.
type Quote struct {
	Cart        Cart            `json:"cart"`
	Removed     []CartLine      `json:"removed"`
	Clipped     []CartLine      `json:"clipped"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shipping"`
	CODFee      decimal.Decimal `json:"cod_fee"`
	Total       decimal.Decimal `json:"total"`
	Coupon      *CouponResult   `json:"coupon,omitempty"`
	CouponError string          `json:"coupon_error,omitempty"`
}

// CartServiceDeps bundles collaborators for the cart service.
type CartServiceDeps struct {
	DB       *gorm.DB
	Settings SettingsProvider
	Clock    func() time.Time
	Logger   *zap.Logger
}

type CartService struct {
	db       *gorm.DB
	settings SettingsProvider
	clock    func() time.Time
	logger   *zap.Logger
}

func NewCartService(deps CartServiceDeps) (*CartService, error) {
	if deps.DB == nil {
		return nil, errors.New("cart service: db is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("cart service: settings provider is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{db: deps.DB, settings: deps.Settings, clock: clock, logger: logger}, nil
}

// Quote refreshes prices and stock ceilings from the catalog, clips or
// drops lines accordingly and prices the result. Nothing is persisted and
// a coupon that does not apply is reported rather than failing the quote.
func (s *CartService) Quote(ctx context.Context, actor Actor, req QuoteRequest) (Quote, error) {
	if len(req.Lines) > maxPageSize {
		return Quote{}, fmt.Errorf("%w: too many cart lines", ErrInvalidInput)
	}
	for _, l := range req.Lines {
		if l.Type != model.KindGenerator && l.Type != model.KindPart {
			return Quote{}, fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, l.Type)
		}
		if l.Quantity < 1 {
			return Quote{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
		}
	}
	db := s.db.WithContext(ctx)
	live, err := loadActiveProducts(db, req.Lines)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{Removed: []CartLine{}, Clipped: []CartLine{}}
	for _, l := range req.Lines {
		p, ok := live[productKey{l.Type, l.ProductID}]
		if !ok || p.Fields().Stock <= 0 {
			q.Removed = append(q.Removed, l)
			continue
		}
		f := p.Fields()
		fresh := CartLine{
			ProductID: l.ProductID,
			Type:      l.Type,
			Name:      f.Name,
			Quantity:  l.Quantity,
			UnitPrice: f.Price,
			MaxStock:  f.Stock,
		}
		before := q.Cart
		q.Cart = q.Cart.Add(fresh)
		if quantityOf(q.Cart, fresh) < quantityOf(before, fresh)+l.Quantity {
			q.Clipped = append(q.Clipped, fresh)
		}
	}

	q.Subtotal = q.Cart.Subtotal()
	q.Discount = decimal.Zero
	freeShipping := false
	if code := normalizeCode(req.CouponCode); code != "" && len(q.Cart.Lines) > 0 {
		c, err := findCoupon(db, code)
		if err != nil {
			return Quote{}, err
		}
		var uses int64
		if c != nil {
			if uses, err = countUserCouponUses(db, actor.UserID, c.ID); err != nil {
				return Quote{}, err
			}
		}
		res, err := EvaluateCouponForLines(c, s.clock(), uses, q.Cart.Lines)
		if rej, ok := IsRejection(err); ok {
			q.CouponError = rej.Reason
		} else if err != nil {
			return Quote{}, err
		} else {
			q.Coupon = &res
			q.Discount = res.Discount
			freeShipping = res.FreeShipping
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return Quote{}, err
	}
	q.Shipping = settings.ShippingFor(q.Subtotal, freeShipping)
	q.CODFee = decimal.Zero
	if req.PaymentMethod != "" {
		q.CODFee = settings.CODFeeFor(req.PaymentMethod)
	}
	q.Total = q.Subtotal.Sub(q.Discount).Add(q.Shipping).Add(q.CODFee)
	return q, nil
}

func quantityOf(c Cart, line CartLine) int64 {
	for _, l := range c.Lines {
		if l.same(line) {
			return l.Quantity
		}
	}
	return 0
}

type productKey struct {
	kind model.ProductKind
	id   uint
}

// loadActiveProducts fetches the referenced products with one query per family.
func loadActiveProducts(db *gorm.DB, lines []CartLine) (map[productKey]model.Product, error) {
	ids := map[model.ProductKind][]uint{}
	for _, l := range lines {
		ids[l.Type] = append(ids[l.Type], l.ProductID)
	}
	out := make(map[productKey]model.Product, len(lines))
	if len(ids[model.KindGenerator]) > 0 {
		var rows []model.Generator
		if err := db.Where("id IN ? AND is_active = ?", ids[model.KindGenerator], true).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			out[productKey{model.KindGenerator, rows[i].ID}] = &rows[i]
		}
	}
	if len(ids[model.KindPart]) > 0 {
		var rows []model.Part
		if err := db.Where("id IN ? AND is_active = ?", ids[model.KindPart], true).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			out[productKey{model.KindPart, rows[i].ID}] = &rows[i]
		}
	}
	return out, nil
}
