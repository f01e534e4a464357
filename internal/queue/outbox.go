package queue

import (
	"context"
	"encoding/json"
	"fmt"

	rd "github.com/redis/go-redis/v9"
)

// Outbox appends events to a Redis Stream. The Relay drains the stream into
// Kafka, so request handlers never wait on the broker.
type Outbox struct {
	rdb    *rd.Client
	stream string
	maxLen int64
}

func NewOutbox(rdb *rd.Client, stream string, maxLen int64) *Outbox {
	return &Outbox{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Publish stores ev under the "payload" field, with "type" alongside for
// anyone inspecting the stream by hand.
func (o *Outbox) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	args := &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{"type": ev.Type, "payload": string(b)},
	}
	if o.maxLen > 0 {
		args.MaxLen = o.maxLen
		args.Approx = true
	}
	return o.rdb.XAdd(ctx, args).Err()
}
