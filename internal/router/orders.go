package router

import (
	"net/http"
	"strings"
	"time"

	"genmart/internal/model"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const idempotencyHeader = "Idempotency-Key"

func validateCoupon(coupons *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code     string `form:"code" binding:"required,max=40"`
			Subtotal string `form:"subtotal" binding:"required"`
		}
		if !bindQuery(c, &req) {
			return
		}
		subtotal, err := decimal.NewFromString(req.Subtotal)
		if err != nil || subtotal.IsNegative() {
			fail(c, http.StatusBadRequest, "invalid subtotal")
			return
		}
		res, err := coupons.Validate(c.Request.Context(), actor(c), req.Code, subtotal)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{
			"coupon":        res.Coupon,
			"discount":      res.Discount,
			"free_shipping": res.FreeShipping,
			"message":       res.Message,
		})
	}
}

type cartLineRequest struct {
	ProductID uint              `json:"product_id" binding:"required"`
	Type      model.ProductKind `json:"type" binding:"required,oneof=GENERATOR PART"`
	Quantity  int64             `json:"quantity" binding:"required,min=1,max=100"`
}

func quoteCart(cart *service.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Lines         []cartLineRequest   `json:"lines" binding:"max=60,dive"`
			CouponCode    string              `json:"coupon_code" binding:"max=40"`
			PaymentMethod model.PaymentMethod `json:"payment_method" binding:"omitempty,oneof=COD BANK_TRANSFER JAZZCASH EASYPAISA CARD"`
		}
		if !bindJSON(c, &req) {
			return
		}
		lines := make([]service.CartLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, service.CartLine{ProductID: l.ProductID, Type: l.Type, Quantity: l.Quantity})
		}
		q, err := cart.Quote(c.Request.Context(), actor(c), service.QuoteRequest{
			Lines:         lines,
			CouponCode:    req.CouponCode,
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, q)
	}
}

type addressRequest struct {
	FullName   string `json:"full_name" binding:"required,max=120"`
	Phone      string `json:"phone" binding:"required,pkphone"`
	Line1      string `json:"line1" binding:"required,max=255"`
	Line2      string `json:"line2" binding:"max=255"`
	City       string `json:"city" binding:"required,max=80"`
	Province   string `json:"province" binding:"required,max=80"`
	PostalCode string `json:"postal_code" binding:"max=20"`
}

func (a addressRequest) model() model.Address {
	return model.Address{
		FullName:   a.FullName,
		Phone:      normalizePhone(a.Phone),
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
	}
}

func placeOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Lines           []cartLineRequest   `json:"lines" binding:"required,min=1,max=60,dive"`
			ShippingAddress addressRequest      `json:"shipping_address" binding:"required"`
			PaymentMethod   model.PaymentMethod `json:"payment_method" binding:"required,oneof=COD BANK_TRANSFER JAZZCASH EASYPAISA CARD"`
			CouponCode      string              `json:"coupon_code" binding:"max=40"`
			Notes           string              `json:"notes" binding:"max=500"`
		}
		if !bindJSON(c, &req) {
			return
		}
		key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
		if len(key) > 128 {
			fail(c, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}
		lines := make([]service.OrderLineInput, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, service.OrderLineInput{Type: l.Type, ProductID: l.ProductID, Quantity: l.Quantity})
		}
		res, err := orders.PlaceOrder(c.Request.Context(), actor(c), service.PlaceOrderInput{
			Lines:           lines,
			ShippingAddress: req.ShippingAddress.model(),
			PaymentMethod:   req.PaymentMethod,
			CouponCode:      req.CouponCode,
			Notes:           req.Notes,
			IdempotencyKey:  key,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		if res.Replayed {
			c.Header("Idempotent-Replayed", "true")
			ok(c, http.StatusOK, res.Order)
			return
		}
		ok(c, http.StatusCreated, res.Order)
	}
}

func listMyOrders(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pageQuery
		if !bindQuery(c, &req) {
			return
		}
		page, err := orders.ListMine(c.Request.Context(), actor(c), req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func getOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		o, err := orders.GetOrder(c.Request.Context(), actor(c), id)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, o)
	}
}

// cancelOrder handles PUT /orders/:id; cancel is the only customer action.
func cancelOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			Action string `json:"action" binding:"required,oneof=cancel"`
			Reason string `json:"reason" binding:"max=255"`
		}
		if !bindJSON(c, &req) {
			return
		}
		o, err := orders.CancelOrder(c.Request.Context(), actor(c), id, req.Reason)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, o)
	}
}

func listAllOrders(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			pageQuery
			Status string `form:"status"`
		}
		if !bindQuery(c, &req) {
			return
		}
		page, err := orders.ListAll(c.Request.Context(), req.Status, req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func transitionOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			Status string `json:"status" binding:"required"`
			Note   string `json:"note" binding:"max=500"`
		}
		if !bindJSON(c, &req) {
			return
		}
		o, err := orders.TransitionOrder(c.Request.Context(), actor(c), id, model.OrderStatus(req.Status), req.Note)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, o)
	}
}

func updatePayment(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			PaymentStatus model.PaymentStatus `json:"payment_status" binding:"required,oneof=PENDING PAID FAILED REFUNDED PARTIALLY_REFUNDED"`
		}
		if !bindJSON(c, &req) {
			return
		}
		o, err := orders.UpdatePaymentStatus(c.Request.Context(), actor(c), id, req.PaymentStatus)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, o)
	}
}

type couponRequest struct {
	Code                string              `json:"code" binding:"required,max=40"`
	Description         string              `json:"description" binding:"max=255"`
	Type                model.DiscountKind  `json:"type" binding:"required,oneof=PERCENTAGE FIXED_AMOUNT FREE_SHIPPING"`
	Value               decimal.Decimal     `json:"value"`
	MinOrderAmount      decimal.NullDecimal `json:"min_order_amount"`
	MaxDiscount         decimal.NullDecimal `json:"max_discount"`
	UsageLimit          *int64              `json:"usage_limit" binding:"omitempty,min=1"`
	PerUserLimit        *int64              `json:"per_user_limit" binding:"omitempty,min=1"`
	StartsAt            *time.Time          `json:"starts_at"`
	ExpiresAt           *time.Time          `json:"expires_at"`
	IsActive            *bool               `json:"is_active"`
	AppliesToGenerators *bool               `json:"applies_to_generators"`
	AppliesToParts      *bool               `json:"applies_to_parts"`
}

func createCoupon(coupons *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req couponRequest
		if !bindJSON(c, &req) {
			return
		}
		cp, err := coupons.CreateCoupon(c.Request.Context(), actor(c), service.CouponInput{
			Code:                req.Code,
			Description:         req.Description,
			Kind:                req.Type,
			Value:               req.Value,
			MinOrder:            req.MinOrderAmount,
			MaxDiscount:         req.MaxDiscount,
			UsageLimit:          req.UsageLimit,
			PerUserLimit:        req.PerUserLimit,
			StartsAt:            req.StartsAt,
			ExpiresAt:           req.ExpiresAt,
			IsActive:            req.IsActive,
			AppliesToGenerators: req.AppliesToGenerators,
			AppliesToParts:      req.AppliesToParts,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusCreated, cp)
	}
}

func listCoupons(coupons *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pageQuery
		if !bindQuery(c, &req) {
			return
		}
		page, err := coupons.ListCoupons(c.Request.Context(), req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func updateCoupon(coupons *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			IsActive     *bool      `json:"is_active"`
			UsageLimit   *int64     `json:"usage_limit" binding:"omitempty,min=1"`
			PerUserLimit *int64     `json:"per_user_limit" binding:"omitempty,min=1"`
			ExpiresAt    *time.Time `json:"expires_at"`
			Description  *string    `json:"description" binding:"omitempty,max=255"`
		}
		if !bindJSON(c, &req) {
			return
		}
		cp, err := coupons.UpdateCoupon(c.Request.Context(), actor(c), id, service.CouponPatch{
			IsActive:     req.IsActive,
			UsageLimit:   req.UsageLimit,
			PerUserLimit: req.PerUserLimit,
			ExpiresAt:    req.ExpiresAt,
			Description:  req.Description,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, cp)
	}
}
