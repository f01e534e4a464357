package service

import (
	"context"
	"testing"

	"genmart/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func line(kind model.ProductKind, id uint, qty, max int64, price string) CartLine {
	return CartLine{ProductID: id, Type: kind, Quantity: qty, MaxStock: max, UnitPrice: dec(price)}
}

func TestCartAddMergesAndClamps(t *testing.T) {
	var c Cart
	c = c.Add(line(model.KindGenerator, 1, 1, 3, "100"))
	c = c.Add(line(model.KindPart, 1, 2, 10, "50"))
	c = c.Add(line(model.KindGenerator, 1, 5, 3, "100"))
	require.Len(t, c.Lines, 2, "same id in different families stays separate")
	assert.Equal(t, int64(3), c.Lines[0].Quantity)
	assert.True(t, c.Subtotal().Equal(dec("400")))

	c = c.Add(line(model.KindPart, 9, 1, 0, "10"))
	assert.Len(t, c.Lines, 2, "out of stock lines are never added")
}

func TestCartAddDoesNotMutateReceiver(t *testing.T) {
	c := Cart{}.Add(line(model.KindPart, 1, 1, 5, "10"))
	_ = c.Add(line(model.KindPart, 1, 3, 5, "10"))
	assert.Equal(t, int64(1), c.Lines[0].Quantity)
}

func TestCartSetQuantityAndRemove(t *testing.T) {
	c := Cart{}.
		Add(line(model.KindGenerator, 1, 1, 4, "100")).
		Add(line(model.KindPart, 2, 1, 4, "10"))

	c = c.SetQuantity(model.KindGenerator, 1, 10)
	assert.Equal(t, int64(4), c.Lines[0].Quantity)
	c = c.SetQuantity(model.KindGenerator, 1, 0)
	assert.Equal(t, int64(1), c.Lines[0].Quantity, "quantity never drops below one")

	c = c.Remove(model.KindGenerator, 1)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, uint(2), c.Lines[0].ProductID)
	assert.True(t, c.Subtotal().Equal(dec("10")))
}

func newCartService(t *testing.T, db *gorm.DB, settings Settings) *CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		DB:       db,
		Settings: staticSettings{settings},
		Clock:    fixedClock,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return svc
}

func TestQuoteRefreshesFromCatalog(t *testing.T) {
	db := newTestDB(t)
	settings := DefaultSettings()
	settings.CODFee = dec("100")
	svc := newCartService(t, db, settings)

	gen := seedGenerator(t, db, "Jasco 3kVA", 30000, 2)
	part := seedPart(t, db, "Spark Plug", 800, 0)
	gone := seedPart(t, db, "Old Carburettor", 2000, 5)
	require.NoError(t, db.Delete(gone).Error)

	q, err := svc.Quote(context.Background(), customer, QuoteRequest{
		Lines: []CartLine{
			{ProductID: gen.ID, Type: model.KindGenerator, Quantity: 5, UnitPrice: dec("1")},
			{ProductID: part.ID, Type: model.KindPart, Quantity: 1},
			{ProductID: gone.ID, Type: model.KindPart, Quantity: 1},
		},
		PaymentMethod: model.PayCOD,
	})
	require.NoError(t, err)

	require.Len(t, q.Cart.Lines, 1)
	got := q.Cart.Lines[0]
	assert.Equal(t, "Jasco 3kVA", got.Name)
	assert.True(t, got.UnitPrice.Equal(dec("30000")), "client price is ignored")
	assert.Equal(t, int64(2), got.Quantity)
	assert.Equal(t, int64(2), got.MaxStock)
	assert.Len(t, q.Clipped, 1)
	assert.Len(t, q.Removed, 2)

	assert.True(t, q.Subtotal.Equal(dec("60000")))
	assert.True(t, q.Shipping.IsZero())
	assert.True(t, q.CODFee.Equal(dec("100")))
	assert.True(t, q.Total.Equal(dec("60100")))
}

func TestQuoteReportsCouponProblemsWithoutFailing(t *testing.T) {
	db := newTestDB(t)
	svc := newCartService(t, db, DefaultSettings())
	part := seedPart(t, db, "Spark Plug", 800, 10)
	seedCoupon(t, db, model.Coupon{
		Code: "SAVE10", Kind: model.DiscountPercentage, Value: dec("10"),
		MinOrder: decimal.NewNullDecimal(dec("5000")),
	})

	req := QuoteRequest{
		Lines:      []CartLine{{ProductID: part.ID, Type: model.KindPart, Quantity: 2}},
		CouponCode: "save10",
	}
	q, err := svc.Quote(context.Background(), customer, req)
	require.NoError(t, err)
	assert.Nil(t, q.Coupon)
	assert.Equal(t, "minimum order amount is Rs 5,000", q.CouponError)
	assert.True(t, q.Total.Equal(dec("2100")))

	req.Lines[0].Quantity = 10
	q, err = svc.Quote(context.Background(), customer, req)
	require.NoError(t, err)
	require.NotNil(t, q.Coupon)
	assert.True(t, q.Discount.Equal(dec("800")))
	assert.True(t, q.Total.Equal(dec("7700")))

	var n int64
	require.NoError(t, db.Model(&model.Coupon{}).Where("usage_count > 0").Count(&n).Error)
	assert.Zero(t, n, "quoting never claims the coupon")
}

func TestQuoteValidatesLines(t *testing.T) {
	db := newTestDB(t)
	svc := newCartService(t, db, DefaultSettings())

	_, err := svc.Quote(context.Background(), customer, QuoteRequest{
		Lines: []CartLine{{ProductID: 1, Type: "BOAT", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Quote(context.Background(), customer, QuoteRequest{
		Lines: []CartLine{{ProductID: 1, Type: model.KindPart, Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	q, err := svc.Quote(context.Background(), customer, QuoteRequest{})
	require.NoError(t, err)
	assert.Empty(t, q.Cart.Lines)
	assert.True(t, q.Total.IsZero())
}
