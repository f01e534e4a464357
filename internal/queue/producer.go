package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer wraps the Kafka writer for domain events.
type Producer struct {
	w *kafka.Writer
}

// NewProducer configures the writer for durability:
// - Hash on Key keeps every event of one entity on one partition, in order.
// - RequireAll waits for the in-sync replicas.
// - MaxAttempts and the timeouts bound retries.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish writes one event synchronously, keyed by entity.
func (p *Producer) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.Key()),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(ev.Type)}},
	})
}
