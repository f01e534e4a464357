package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"genmart/internal/model"
	"genmart/internal/queue"
	gmredis "genmart/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func placeOne(t *testing.T, svc *OrderService, actor Actor, p model.Product, qty int64, method model.PaymentMethod) *model.Order {
	t.Helper()
	res, err := svc.PlaceOrder(context.Background(), actor, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: p.Kind(), ProductID: p.ProductID(), Quantity: qty}},
		ShippingAddress: testAddress(),
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	return res.Order
}

func TestPlaceOrderComputesTotalsAndSnapshots(t *testing.T) {
	db := newTestDB(t)
	settings := DefaultSettings()
	settings.CODFee = dec("150")
	events := &recordingEvents{}
	svc := newOrderService(t, db, OrderServiceDeps{Settings: staticSettings{settings}, Events: events})

	gen := seedGenerator(t, db, "Jasco 3kVA", 20000, 5)
	part := seedPart(t, db, "Air Filter", 1250, 10)

	res, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines: []OrderLineInput{
			{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1},
			{Type: model.KindPart, ProductID: part.ID, Quantity: 2},
			{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
		Notes:           "<b>call</b> before delivery",
	})
	require.NoError(t, err)
	o := res.Order

	assert.Regexp(t, `^GM-260314-[0-9A-F]{6}$`, o.OrderNo)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "call before delivery", o.Notes)
	assert.True(t, o.Subtotal.Equal(dec("42500")), o.Subtotal.String())
	assert.True(t, o.ShippingFee.Equal(dec("500")))
	assert.True(t, o.CODFee.Equal(dec("150")))
	assert.True(t, o.Total.Equal(dec("43150")), o.Total.String())
	require.Len(t, o.Items, 2, "repeated lines are merged")

	assert.Equal(t, int64(3), stockOf(t, db, gen))
	assert.Equal(t, int64(8), stockOf(t, db, part))

	// later catalog edits never reach a placed order
	require.NoError(t, db.Model(gen).Update("price", dec("99999")).Error)
	stored, err := svc.GetOrder(context.Background(), customer, o.ID)
	require.NoError(t, err)
	for _, item := range stored.Items {
		if item.ProductKind == model.KindGenerator {
			assert.True(t, item.UnitPrice.Equal(dec("20000")))
			assert.Equal(t, "Jasco 3kVA", item.Name)
		}
	}
	assert.Equal(t, []string{queue.EventOrderCreated}, events.types())
}

func TestPlaceOrderFreeShippingThresholdAndCoupon(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	gen := seedGenerator(t, db, "Jasco 10kVA", 60000, 5)
	part := seedPart(t, db, "Spark Plug", 800, 20)
	seedCoupon(t, db, model.Coupon{
		Code: "SAVE10", Kind: model.DiscountPercentage, Value: dec("10"),
		MaxDiscount: decimal.NewNullDecimal(dec("500")), MinOrder: decimal.NewNullDecimal(dec("1000")),
	})
	seedCoupon(t, db, model.Coupon{Code: "SHIPFREE", Kind: model.DiscountFreeShipping, Value: dec("1")})

	big := placeOne(t, svc, customer, gen, 1, model.PayBankTransfer)
	assert.True(t, big.ShippingFee.IsZero(), "subtotal above threshold ships free")

	res, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindPart, ProductID: part.ID, Quantity: 10}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayJazzCash,
		CouponCode:      "save10",
	})
	require.NoError(t, err)
	o := res.Order
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.True(t, o.Discount.Equal(dec("500")), o.Discount.String())
	assert.True(t, o.Total.Equal(dec("8000")), "8000 - 500 + 500 shipping, got %s", o.Total)

	res, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindPart, ProductID: part.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayEasyPaisa,
		CouponCode:      "SHIPFREE",
	})
	require.NoError(t, err)
	assert.True(t, res.Order.ShippingFee.IsZero())
	assert.True(t, res.Order.Total.Equal(dec("800")))
}

func TestPlaceOrderRejectionRollsBackEverything(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 3)
	part := seedPart(t, db, "Oil Filter", 900, 1)
	coupon := seedCoupon(t, db, model.Coupon{Code: "FLAT1000", Kind: model.DiscountFixedAmount, Value: dec("1000")})

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines: []OrderLineInput{
			{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 2},
			{Type: model.KindPart, ProductID: part.ID, Quantity: 2},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
		CouponCode:      "FLAT1000",
	})
	assert.Equal(t, "only 1 of Oil Filter left in stock", rejectionReason(t, err))

	assert.Equal(t, int64(3), stockOf(t, db, gen), "earlier lines are rolled back")
	assert.Equal(t, int64(1), stockOf(t, db, part))
	var n int64
	require.NoError(t, db.Model(&model.Order{}).Count(&n).Error)
	assert.Zero(t, n)
	var c model.Coupon
	require.NoError(t, db.First(&c, coupon.ID).Error)
	assert.Zero(t, c.UsageCount)
}

func TestPlaceOrderRefusesInactiveAndDisabledPayment(t *testing.T) {
	db := newTestDB(t)
	settings := DefaultSettings()
	settings.CODMaxOrder = dec("50000")
	svc := newOrderService(t, db, OrderServiceDeps{Settings: staticSettings{settings}})
	gen := seedGenerator(t, db, "Jasco 8kVA", 120000, 3)

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCard,
	})
	assert.Equal(t, "payment method CARD is not available", rejectionReason(t, err))

	_, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
	})
	assert.Equal(t, "cash on delivery is only available for orders up to Rs 50,000", rejectionReason(t, err))
	assert.Equal(t, int64(3), stockOf(t, db, gen))

	require.NoError(t, db.Model(gen).Update("is_active", false).Error)
	_, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayBankTransfer,
	})
	assert.Equal(t, "Jasco 8kVA is no longer available", rejectionReason(t, err))

	_, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayBankTransfer,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:         []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1}},
		PaymentMethod: model.PayBankTransfer,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConcurrentCheckoutOfLastUnits(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	gen := seedGenerator(t, db, "Jasco 2kVA", 45000, 2)

	buyers := []Actor{customer, other}
	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, buyer := range buyers {
		wg.Add(1)
		go func(i int, buyer Actor) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.PlaceOrder(context.Background(), buyer, PlaceOrderInput{
				Lines:           []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 2}},
				ShippingAddress: testAddress(),
				PaymentMethod:   model.PayCOD,
			})
		}(i, buyer)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		_, ok := IsRejection(err)
		assert.True(t, ok, "loser gets a rejection, got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(0), stockOf(t, db, gen))
}

func TestCouponUsageLimitIsClaimedAtomically(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	part := seedPart(t, db, "Fuel Pump", 3000, 10)
	seedCoupon(t, db, model.Coupon{Code: "ONCE", Kind: model.DiscountFixedAmount, Value: dec("100"), UsageLimit: int64Ptr(1)})

	in := PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindPart, ProductID: part.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
		CouponCode:      "ONCE",
	}
	_, err := svc.PlaceOrder(context.Background(), customer, in)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(context.Background(), other, in)
	assert.Equal(t, "coupon has reached its usage limit", rejectionReason(t, err))
	assert.Equal(t, int64(9), stockOf(t, db, part))
}

func TestStockGuardHoldsWhenStockDrainsMidCheckout(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	part := seedPart(t, db, "Fuel Pump", 3000, 4)

	// another checkout takes the remaining units after ours read the row
	var once sync.Once
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:drain_stock", func(tx *gorm.DB) {
		if tx.Statement.Table != "parts" {
			return
		}
		once.Do(func() {
			err := tx.Session(&gorm.Session{NewDB: true}).Exec("UPDATE parts SET stock = 0 WHERE id = ?", part.ID).Error
			if err != nil {
				_ = tx.AddError(err)
			}
		})
	}))

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindPart, ProductID: part.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
	})
	assert.Equal(t, "Fuel Pump is out of stock", rejectionReason(t, err))

	var orders int64
	require.NoError(t, db.Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.Equal(t, int64(4), stockOf(t, db, part), "the failed checkout is rolled back")
}

func TestPerUserCouponLimitWithoutCheckoutLock(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{Locker: brokenLocker{}})
	part := seedPart(t, db, "Spark Plug", 800, 10)
	welcome := seedCoupon(t, db, model.Coupon{Code: "WELCOME", Kind: model.DiscountFixedAmount, Value: dec("100")})

	in := PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindPart, ProductID: part.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
		CouponCode:      "welcome",
	}
	_, err := svc.PlaceOrder(context.Background(), customer, in)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(context.Background(), customer, in)
	assert.Equal(t, "you have already used this coupon 1 time(s)", rejectionReason(t, err))
	_, err = svc.PlaceOrder(context.Background(), other, in)
	require.NoError(t, err)

	var c model.Coupon
	require.NoError(t, db.First(&c, welcome.ID).Error)
	assert.Equal(t, int64(2), c.UsageCount)
	assert.Equal(t, int64(8), stockOf(t, db, part))
}

func TestPerUserCouponLimitRecountsAfterClaim(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{Locker: brokenLocker{}})
	part := seedPart(t, db, "Oil Filter", 1200, 10)
	welcome := seedCoupon(t, db, model.Coupon{Code: "WELCOME", Kind: model.DiscountFixedAmount, Value: dec("100")})

	// the same customer's other checkout commits while ours waits on the
	// coupon row, so it only becomes visible after the claim
	var once sync.Once
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:rival_checkout", func(tx *gorm.DB) {
		if tx.Statement.Table != "coupons" {
			return
		}
		once.Do(func() {
			rival := &model.Order{
				OrderNo:       "GM-RIVAL",
				UserID:        customer.UserID,
				Status:        model.OrderPending,
				PaymentStatus: model.PaymentPending,
				PaymentMethod: model.PayCOD,
				CouponID:      &welcome.ID,
				CouponCode:    welcome.Code,
			}
			if err := tx.Session(&gorm.Session{NewDB: true}).Create(rival).Error; err != nil {
				_ = tx.AddError(err)
			}
		})
	}))

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindPart, ProductID: part.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
		CouponCode:      "WELCOME",
	})
	assert.Equal(t, "you have already used this coupon 1 time(s)", rejectionReason(t, err))

	var c model.Coupon
	require.NoError(t, db.First(&c, welcome.ID).Error)
	assert.Zero(t, c.UsageCount, "the claim is rolled back with the order")
	assert.Equal(t, int64(10), stockOf(t, db, part))
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, string) (bool, error) { return false, nil }
func (busyLocker) Release(context.Context, string, string) error        { return nil }

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (brokenLocker) Release(context.Context, string, string) error { return nil }

func TestCheckoutLockContention(t *testing.T) {
	db := newTestDB(t)
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 3)

	busy := newOrderService(t, db, OrderServiceDeps{Locker: busyLocker{}})
	_, err := busy.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "checkout already in progress", Detail(err))

	degraded := newOrderService(t, db, OrderServiceDeps{Locker: brokenLocker{}})
	placeOne(t, degraded, customer, gen, 1, model.PayCOD)
}

func TestIdempotentPlacementWithRedis(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := newOrderService(t, db, OrderServiceDeps{
		Locker:      gmredis.NewCheckoutLock(rdb, 10*time.Second),
		Idempotency: gmredis.NewIdempotencyStore(rdb, time.Hour),
	})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 3)
	in := PlaceOrderInput{
		Lines:           []OrderLineInput{{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayCOD,
		IdempotencyKey:  "checkout-abc",
	}

	first, err := svc.PlaceOrder(context.Background(), customer, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.False(t, mr.Exists(gmredis.CheckoutLockKey(customer.UserID)), "lock released after checkout")

	again, err := svc.PlaceOrder(context.Background(), customer, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	assert.Equal(t, int64(2), stockOf(t, db, gen), "replay does not take stock again")
}

func TestCancelRestoresStockPerLine(t *testing.T) {
	db := newTestDB(t)
	events := &recordingEvents{}
	svc := newOrderService(t, db, OrderServiceDeps{Events: events})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 4)
	part := seedPart(t, db, "Oil Filter", 900, 10)

	res, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderInput{
		Lines: []OrderLineInput{
			{Type: model.KindGenerator, ProductID: gen.ID, Quantity: 3},
			{Type: model.KindPart, ProductID: part.ID, Quantity: 4},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PayBankTransfer,
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Order{}).Where("id = ?", res.Order.ID).Update("payment_status", model.PaymentPaid).Error)
	genBefore, partBefore := stockOf(t, db, gen), stockOf(t, db, part)

	_, err = svc.CancelOrder(context.Background(), other, res.Order.ID, "")
	assert.ErrorIs(t, err, ErrNotFound, "other customers cannot see the order")

	cancelled, err := svc.CancelOrder(context.Background(), customer, res.Order.ID, "found cheaper")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, "found cheaper", cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, genBefore+3, stockOf(t, db, gen))
	assert.Equal(t, partBefore+4, stockOf(t, db, part))
	assert.Equal(t, []string{queue.EventOrderCreated, queue.EventOrderCancelled}, events.types())
}

func TestCancelUnpaidKeepsPaymentStatus(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 4)
	o := placeOne(t, svc, customer, gen, 1, model.PayCOD)

	cancelled, err := svc.CancelOrder(context.Background(), customer, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, cancelled.PaymentStatus)
}

func TestCancelOutsidePendingLeavesEverythingUnchanged(t *testing.T) {
	for _, status := range []model.OrderStatus{
		model.OrderConfirmed, model.OrderProcessing, model.OrderShipped,
		model.OrderOutForDelivery, model.OrderDelivered, model.OrderCancelled, model.OrderRefunded,
	} {
		t.Run(string(status), func(t *testing.T) {
			db := newTestDB(t)
			svc := newOrderService(t, db, OrderServiceDeps{})
			gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 4)
			o := placeOne(t, svc, customer, gen, 2, model.PayCOD)
			require.NoError(t, db.Model(&model.Order{}).Where("id = ?", o.ID).Update("status", status).Error)
			stockBefore := stockOf(t, db, gen)

			_, err := svc.CancelOrder(context.Background(), customer, o.ID, "")
			assert.Equal(t, "order can only be cancelled while pending", rejectionReason(t, err))

			after, err := svc.GetOrder(context.Background(), customer, o.ID)
			require.NoError(t, err)
			assert.Equal(t, status, after.Status)
			assert.Nil(t, after.CancelledAt)
			assert.Equal(t, stockBefore, stockOf(t, db, gen))
		})
	}
}

func TestOrderTransitionTable(t *testing.T) {
	all := []model.OrderStatus{
		model.OrderPending, model.OrderConfirmed, model.OrderProcessing, model.OrderShipped,
		model.OrderOutForDelivery, model.OrderDelivered, model.OrderCancelled, model.OrderRefunded,
	}
	allowed := map[model.OrderStatus][]model.OrderStatus{
		model.OrderPending:        {model.OrderConfirmed, model.OrderCancelled},
		model.OrderConfirmed:      {model.OrderProcessing, model.OrderCancelled, model.OrderRefunded},
		model.OrderProcessing:     {model.OrderShipped, model.OrderCancelled, model.OrderRefunded},
		model.OrderShipped:        {model.OrderOutForDelivery, model.OrderDelivered, model.OrderRefunded},
		model.OrderOutForDelivery: {model.OrderDelivered, model.OrderRefunded},
		model.OrderDelivered:      {model.OrderRefunded},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				want = want || ok == to
			}
			assert.Equal(t, want, canTransitionOrder(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStaffTransitions(t *testing.T) {
	db := newTestDB(t)
	events := &recordingEvents{}
	svc := newOrderService(t, db, OrderServiceDeps{Events: events})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 10)
	ctx := context.Background()

	_, err := svc.TransitionOrder(ctx, customer, 1, model.OrderConfirmed, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	cod := placeOne(t, svc, customer, gen, 1, model.PayCOD)
	for _, next := range []model.OrderStatus{model.OrderConfirmed, model.OrderProcessing, model.OrderShipped, model.OrderDelivered} {
		_, err := svc.TransitionOrder(ctx, staff, cod.ID, next, "")
		require.NoError(t, err, next)
	}
	delivered, err := svc.GetOrder(ctx, staff, cod.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, delivered.PaymentStatus, "cash collected on delivery")
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = svc.TransitionOrder(ctx, staff, cod.ID, model.OrderShipped, "")
	assert.Equal(t, "order cannot move from DELIVERED to SHIPPED", rejectionReason(t, err))

	refunded, err := svc.TransitionOrder(ctx, admin, cod.ID, "refunded", "faulty unit")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, refunded.PaymentStatus)
	assert.Equal(t, int64(9), stockOf(t, db, gen), "refunds do not restock")

	processing := placeOne(t, svc, other, gen, 3, model.PayBankTransfer)
	_, err = svc.TransitionOrder(ctx, staff, processing.ID, model.OrderConfirmed, "")
	require.NoError(t, err)
	_, err = svc.TransitionOrder(ctx, staff, processing.ID, model.OrderProcessing, "")
	require.NoError(t, err)
	before := stockOf(t, db, gen)
	cancelled, err := svc.TransitionOrder(ctx, staff, processing.ID, model.OrderCancelled, "supplier delay")
	require.NoError(t, err)
	assert.Equal(t, "supplier delay", cancelled.CancelReason)
	assert.Equal(t, before+3, stockOf(t, db, gen))

	var audits int64
	require.NoError(t, db.Model(&model.AuditLog{}).Where("entity = ? AND action = ?", "order", "order.status").Count(&audits).Error)
	assert.Equal(t, int64(8), audits)
	assert.Contains(t, events.types(), queue.EventOrderStatusChanged)
}

func TestUpdatePaymentStatus(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 10)
	o := placeOne(t, svc, customer, gen, 1, model.PayBankTransfer)

	_, err := svc.UpdatePaymentStatus(context.Background(), staff, o.ID, "SETTLED")
	assert.ErrorIs(t, err, ErrInvalidInput)

	paid, err := svc.UpdatePaymentStatus(context.Background(), staff, o.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)
}

func TestListOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, OrderServiceDeps{})
	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 10)
	for i := 0; i < 3; i++ {
		placeOne(t, svc, customer, gen, 1, model.PayCOD)
	}
	placeOne(t, svc, other, gen, 1, model.PayCOD)

	mine, err := svc.ListMine(context.Background(), customer, Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Total)
	assert.Equal(t, 2, mine.TotalPages)
	assert.Len(t, mine.Items, 2)
	assert.Len(t, mine.Items[0].Items, 1, "lines are preloaded")

	all, err := svc.ListAll(context.Background(), "pending", Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)

	_, err = svc.ListAll(context.Background(), "lost", Page{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
