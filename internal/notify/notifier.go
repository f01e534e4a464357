package notify

import (
	"context"
	"time"

	"genmart/internal/queue"
	gmredis "genmart/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dedupeScope = "mail"

// Deduper remembers which events were already mailed.
type Deduper interface {
	MarkOnce(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// RedisDeduper keeps one marker per event id for TTL.
type RedisDeduper struct {
	RDB *rd.Client
	TTL time.Duration
}

func (d RedisDeduper) MarkOnce(ctx context.Context, id string) (bool, error) {
	return gmredis.MarkOnce(ctx, d.RDB, dedupeScope, id, d.TTL)
}

func (d RedisDeduper) Forget(ctx context.Context, id string) error {
	return gmredis.Forget(ctx, d.RDB, dedupeScope, id)
}

// Notifier mails customers about their orders, tickets and listings.
type Notifier struct {
	mailer Mailer
	dedupe Deduper
	store  string
	logger *zap.Logger
}

func NewNotifier(mailer Mailer, dedupe Deduper, store string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{mailer: mailer, dedupe: dedupe, store: store, logger: logger}
}

// Handle is a queue.Handler. Redelivered events are mailed once; a failed
// send clears the marker and returns the error so the consumer retries.
func (n *Notifier) Handle(ctx context.Context, ev queue.Event) error {
	msg, ok, err := Render(ev, n.store)
	if err != nil || !ok {
		return err
	}
	if n.dedupe != nil {
		first, err := n.dedupe.MarkOnce(ctx, ev.ID)
		if err != nil {
			n.logger.Warn("mail dedupe unavailable", zap.String("event_id", ev.ID), zap.Error(err))
		} else if !first {
			n.logger.Debug("mail already sent", zap.String("event_id", ev.ID))
			return nil
		}
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		if n.dedupe != nil {
			if ferr := n.dedupe.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
				n.logger.Warn("mail dedupe reset failed", zap.String("event_id", ev.ID), zap.Error(ferr))
			}
		}
		return err
	}
	n.logger.Info("mail sent", zap.String("event_id", ev.ID), zap.String("type", ev.Type), zap.String("reference", ev.Reference))
	return nil
}
