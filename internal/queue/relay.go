package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"genmart/internal/observability"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives relayed events. *Producer is the production sink.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Relay forwards the outbox stream to a Sink. A message is acked only once
// the sink accepted it; on failure it stays pending and is retried first on
// the next pass.
type Relay struct {
	rdb    *rd.Client
	sink   Sink
	logger *zap.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, sink Sink, logger *zap.Logger, stream, group, consumer string) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		rdb:      rdb,
		sink:     sink,
		logger:   logger,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.logger.Error("relay ensure group", zap.Error(err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.step(ctx, 2*time.Second); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Warn("relay step", zap.Error(err))
			time.Sleep(300 * time.Millisecond)
		}
	}
}

// step handles this consumer's pending messages, or else waits up to block
// for new ones. A negative block does not wait at all.
func (r *Relay) step(ctx context.Context, block time.Duration) (int, error) {
	msgs, err := r.readGroup(ctx, "0", -1)
	if err != nil {
		return 0, fmt.Errorf("read pending: %w", err)
	}
	if len(msgs) == 0 {
		if msgs, err = r.readGroup(ctx, ">", block); err != nil {
			return 0, fmt.Errorf("read new: %w", err)
		}
	}
	done := 0
	for _, xm := range msgs {
		if err := r.processOne(ctx, xm); err != nil {
			observability.RecordEventRelayed("failed")
			return done, fmt.Errorf("message %s: %w", xm.ID, err)
		}
		done++
	}
	return done, nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	ev, err := parseEvent(xm.Values)
	if err != nil {
		// a malformed entry would block the stream forever; drop it
		r.logger.Warn("relay dropping malformed event", zap.String("stream_id", xm.ID), zap.Error(err))
		observability.RecordEventRelayed("dropped")
		return r.ackAndDelete(ctx, xm.ID)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.sink.Publish(pubCtx, ev); err != nil {
		return err
	}
	observability.RecordEventRelayed("published")
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseEvent(values map[string]any) (Event, error) {
	raw, err := getStreamString(values, "payload")
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Event{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
