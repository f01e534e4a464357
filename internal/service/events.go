package service

import (
	"context"
	"time"

	"genmart/internal/queue"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// EventPublisher hands domain events to the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

func newEvent(now time.Time, typ, entity, entityID string) queue.Event {
	return queue.Event{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Type:       typ,
		Entity:     entity,
		EntityID:   entityID,
		OccurredAt: now,
	}
}

// publish never fails the caller: the record is already committed and a
// lost notification is only logged.
func publish(ctx context.Context, events EventPublisher, logger *zap.Logger, ev queue.Event) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, ev); err != nil {
		logger.Warn("publish event failed",
			zap.String("event_type", ev.Type),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err),
		)
	}
}
