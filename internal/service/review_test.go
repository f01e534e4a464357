package service

import (
	"context"
	"testing"

	"genmart/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReviewsAndVerifiedPurchase(t *testing.T) {
	db := newTestDB(t)
	orders := newOrderService(t, db, OrderServiceDeps{})
	svc, err := NewReviewService(db, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 5)
	o := placeOne(t, orders, customer, gen, 1, model.PayCOD)
	require.NoError(t, db.Model(&model.Order{}).Where("id = ?", o.ID).Update("status", model.OrderDelivered).Error)

	mine, err := svc.Create(ctx, customer, ReviewInput{Type: model.KindGenerator, ProductID: gen.ID, Rating: 5, Title: "<b>Great</b>", Comment: "quiet"})
	require.NoError(t, err)
	assert.True(t, mine.Verified)
	assert.Equal(t, "Great", mine.Title)

	theirs, err := svc.Create(ctx, other, ReviewInput{Type: model.KindGenerator, ProductID: gen.ID, Rating: 2})
	require.NoError(t, err)
	assert.False(t, theirs.Verified)

	_, err = svc.Create(ctx, customer, ReviewInput{Type: model.KindGenerator, ProductID: gen.ID, Rating: 4})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "you have already reviewed this product", Detail(err))

	_, err = svc.Create(ctx, customer, ReviewInput{Type: model.KindGenerator, ProductID: gen.ID, Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, customer, ReviewInput{Type: model.KindPart, ProductID: gen.ID, Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)

	summary, err := svc.ForProduct(ctx, model.KindGenerator, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.InDelta(t, 3.5, summary.Average, 0.001)
	assert.Len(t, summary.Reviews, 2)

	empty, err := svc.ForProduct(ctx, model.KindPart, 42)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.Average)
	assert.NotNil(t, empty.Reviews)
}

func TestWishlist(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewReviewService(db, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	gen := seedGenerator(t, db, "Jasco 5kVA", 90000, 5)
	part := seedPart(t, db, "Spark Plug", 400, 0)

	first, err := svc.AddToWishlist(ctx, customer, model.KindGenerator, gen.ID)
	require.NoError(t, err)
	again, err := svc.AddToWishlist(ctx, customer, model.KindGenerator, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	_, err = svc.AddToWishlist(ctx, customer, model.KindPart, part.ID)
	require.NoError(t, err)
	_, err = svc.AddToWishlist(ctx, customer, model.KindPart, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Model(part).Update("is_active", false).Error)
	list, err := svc.Wishlist(ctx, customer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].Product, "inactive products come back without a body")
	require.NotNil(t, list[1].Product)
	assert.Equal(t, "Jasco 5kVA", list[1].Product.Name)

	assert.ErrorIs(t, svc.RemoveFromWishlist(ctx, other, first.ID), ErrNotFound)
	require.NoError(t, svc.RemoveFromWishlist(ctx, customer, first.ID))
	list, err = svc.Wishlist(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
