package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one event. Returning an error asks for a retry.
type Handler func(ctx context.Context, ev Event) error

type Consumer struct {
	r       *kafka.Reader
	handle  Handler
	logger  *zap.Logger
	retries int
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, handle Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		handle:  handle,
		logger:  logger,
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run commits each message after it was handled or its retries ran out.
// Handlers must be idempotent; a crash between handling and commit
// redelivers the message.
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancelled or reader closed
		}

		var ev Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.logger.Warn("consumer unmarshal", zap.Int64("offset", m.Offset), zap.Error(err))
		} else if err := c.dispatch(ctx, ev); err != nil {
			c.logger.Error("consumer giving up on event",
				zap.String("event_id", ev.ID),
				zap.String("type", ev.Type),
				zap.Error(err),
			)
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("consumer commit", zap.Error(err))
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, ev Event) error {
	return retry(ctx, c.retries, c.backoff, func() error { return c.handle(ctx, ev) })
}

// retry calls fn up to attempts times, doubling the wait after each failure.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
