package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"genmart/internal/queue"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type outbox struct {
	fail error
	sent []Message
}

func (o *outbox) Send(_ context.Context, m Message) error {
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, m)
	return nil
}

func orderEvent(typ, status string) queue.Event {
	return queue.Event{
		ID:         "01JEVENT" + typ + status,
		Type:       typ,
		Entity:     "order",
		EntityID:   "7",
		UserID:     "user-1",
		Email:      "ali@example.pk",
		Reference:  "GM-260314-ABC123",
		Status:     status,
		OccurredAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Payload:    map[string]string{"total": "43150.00", "payment_method": "BANK_TRANSFER"},
	}
}

func TestRenderOrderCreated(t *testing.T) {
	msg, ok, err := Render(orderEvent(queue.EventOrderCreated, "PENDING"), "GenMart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ali@example.pk", msg.To)
	assert.Equal(t, "Order GM-260314-ABC123 received | GenMart", msg.Subject)
	assert.Contains(t, msg.HTML, "Order total: Rs 43,150")
	assert.Contains(t, msg.HTML, "bank transfer")
}

func TestRenderEscapesUserText(t *testing.T) {
	ev := queue.Event{
		ID: "1", Type: queue.EventListingModerated, Entity: "listing", EntityID: "3",
		Email: "sara@example.pk", Reference: `<script>x</script>`, Status: "REJECTED",
		OccurredAt: time.Now(), Payload: map[string]string{"reason": "blurry <b>photos</b>"},
	}
	msg, ok, err := Render(ev, "GenMart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.NotContains(t, msg.HTML, "<b>photos")
	assert.Contains(t, msg.HTML, "was not approved")
}

func TestRenderSkips(t *testing.T) {
	ev := orderEvent(queue.EventOrderCreated, "PENDING")
	ev.Email = ""
	_, ok, err := Render(ev, "GenMart")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Render(orderEvent("order.archived", ""), "GenMart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRenderServiceQuote(t *testing.T) {
	ev := queue.Event{
		ID: "2", Type: queue.EventServiceStatusChanged, Entity: "service_request", EntityID: "5",
		Email: "ali@example.pk", Reference: "SR-260314-0A1B2C", Status: "QUOTED", OccurredAt: time.Now(),
		Payload: map[string]string{"quoted_amount": "4500.00"},
	}
	msg, ok, err := Render(ev, "GenMart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, msg.HTML, "has a quote ready")
	assert.Contains(t, msg.HTML, "Quoted amount: Rs 4,500")
}

func TestNotifierSendsOncePerEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	box := &outbox{}
	n := NewNotifier(box, RedisDeduper{RDB: rdb, TTL: time.Hour}, "GenMart", zaptest.NewLogger(t))
	ev := orderEvent(queue.EventOrderStatusChanged, "SHIPPED")

	require.NoError(t, n.Handle(context.Background(), ev))
	require.NoError(t, n.Handle(context.Background(), ev))
	require.Len(t, box.sent, 1)
	assert.Contains(t, box.sent[0].HTML, "has been shipped")
}

func TestNotifierRetriesAfterFailedSend(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	box := &outbox{fail: errors.New("provider down")}
	n := NewNotifier(box, RedisDeduper{RDB: rdb, TTL: time.Hour}, "GenMart", zaptest.NewLogger(t))
	ev := orderEvent(queue.EventOrderCancelled, "CANCELLED")

	assert.Error(t, n.Handle(context.Background(), ev))
	box.fail = nil
	require.NoError(t, n.Handle(context.Background(), ev))
	assert.Len(t, box.sent, 1)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{From: "GenMart <orders@genmart.pk>", Logger: zaptest.NewLogger(t)}.Send(context.Background(), Message{To: "a@b.pk"}))
}
