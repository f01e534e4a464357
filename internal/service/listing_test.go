package service

import (
	"context"
	"testing"
	"time"

	"genmart/internal/model"
	"genmart/internal/queue"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type steppingClock struct{ now time.Time }

func (c *steppingClock) Now() time.Time { return c.now }

func newListingService(t *testing.T, clock *steppingClock, events EventPublisher) *ListingService {
	t.Helper()
	svc, err := NewListingService(ListingServiceDeps{
		DB:     newTestDB(t),
		Events: events,
		Clock:  clock.Now,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return svc
}

func submitListing(t *testing.T, svc *ListingService, actor Actor, city string) *model.Listing {
	t.Helper()
	l, err := svc.Create(context.Background(), actor, ListingInput{
		Title:        "Used Honda 6.5kVA",
		Brand:        "Honda",
		PowerKVA:     dec("6.5"),
		FuelType:     "petrol",
		Condition:    "good",
		RunningHours: 1200,
		AskingPrice:  dec("150000"),
		City:         city,
	})
	require.NoError(t, err)
	return l
}

func TestCreateListingValidation(t *testing.T) {
	svc := newListingService(t, &steppingClock{now: testNow}, nil)
	l := submitListing(t, svc, customer, "Lahore")
	assert.Equal(t, model.ListingPending, l.Status)
	assert.Equal(t, "PETROL", l.FuelType)

	for name, in := range map[string]ListingInput{
		"title": {AskingPrice: dec("1")},
		"price": {Title: "x", AskingPrice: decimal.Zero},
		"hours": {Title: "x", AskingPrice: dec("1"), RunningHours: -5},
		"power": {Title: "x", AskingPrice: dec("1"), PowerKVA: dec("-1")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), customer, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestListingModerationFlow(t *testing.T) {
	clock := &steppingClock{now: testNow}
	events := &recordingEvents{}
	svc := newListingService(t, clock, events)
	ctx := context.Background()

	l := submitListing(t, svc, customer, "Lahore")
	_, err := svc.Moderate(ctx, staff, l.ID, ListingModeration{Action: "approve"})
	assert.ErrorIs(t, err, ErrUnauthorized, "moderation is admin only")

	_, err = svc.Get(ctx, other, l.ID)
	assert.ErrorIs(t, err, ErrNotFound, "pending listings are private")
	_, err = svc.Get(ctx, customer, l.ID)
	require.NoError(t, err)

	approved, err := svc.Moderate(ctx, admin, l.ID, ListingModeration{Action: "Approve"})
	require.NoError(t, err)
	assert.Equal(t, model.ListingApproved, approved.Status)
	require.NotNil(t, approved.ExpiresAt)
	assert.True(t, approved.ExpiresAt.Equal(testNow.Add(ListingTTL)))

	_, err = svc.Get(ctx, other, l.ID)
	require.NoError(t, err)

	_, err = svc.Moderate(ctx, admin, l.ID, ListingModeration{Action: "reject", Reason: "blurry photos"})
	assert.Equal(t, "listing is APPROVED and cannot be marked REJECTED", rejectionReason(t, err))

	_, err = svc.Moderate(ctx, admin, l.ID, ListingModeration{Action: "sold"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	sold, err := svc.Moderate(ctx, admin, l.ID, ListingModeration{Action: "sold", SoldPrice: decimal.NewNullDecimal(dec("140000"))})
	require.NoError(t, err)
	assert.Equal(t, model.ListingSold, sold.Status)
	assert.True(t, sold.SoldPrice.Decimal.Equal(dec("140000")))
	assert.NotNil(t, sold.SoldAt)

	_, err = svc.Moderate(ctx, admin, l.ID, ListingModeration{Action: "relist"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Moderate(ctx, admin, 999, ListingModeration{Action: "expire"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{queue.EventListingCreated, queue.EventListingModerated, queue.EventListingModerated}, events.types())
}

func TestRejectNeedsReason(t *testing.T) {
	svc := newListingService(t, &steppingClock{now: testNow}, nil)
	l := submitListing(t, svc, customer, "Lahore")

	_, err := svc.Moderate(context.Background(), admin, l.ID, ListingModeration{Action: "reject", Reason: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	rejected, err := svc.Moderate(context.Background(), admin, l.ID, ListingModeration{Action: "reject", Reason: "no photos"})
	require.NoError(t, err)
	assert.Equal(t, "no photos", rejected.RejectionReason)
}

func TestPublicMarketplaceHidesExpired(t *testing.T) {
	clock := &steppingClock{now: testNow}
	svc := newListingService(t, clock, nil)
	ctx := context.Background()

	old := submitListing(t, svc, customer, "Lahore")
	_, err := svc.Moderate(ctx, admin, old.ID, ListingModeration{Action: "approve"})
	require.NoError(t, err)

	clock.now = testNow.Add(30 * 24 * time.Hour)
	fresh := submitListing(t, svc, other, "Karachi")
	_, err = svc.Moderate(ctx, admin, fresh.ID, ListingModeration{Action: "approve"})
	require.NoError(t, err)
	submitListing(t, svc, other, "Karachi")

	public, err := svc.ListPublic(ctx, ListingFilter{})
	require.NoError(t, err)
	require.Len(t, public.Items, 2)
	assert.Equal(t, fresh.ID, public.Items[0].ID, "newest approval first")

	karachi, err := svc.ListPublic(ctx, ListingFilter{City: "karachi", Brand: "HONDA"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), karachi.Total)

	clock.now = testNow.Add(ListingTTL)
	public, err = svc.ListPublic(ctx, ListingFilter{})
	require.NoError(t, err)
	require.Len(t, public.Items, 1)
	assert.Equal(t, fresh.ID, public.Items[0].ID)

	_, err = svc.Get(ctx, other, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, customer, old.ID)
	require.NoError(t, err, "owners still see their expired listing")

	mine, err := svc.ListMine(ctx, other, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	pending, err := svc.ListAll(ctx, "pending", Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Total)
}
