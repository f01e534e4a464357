package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one outgoing e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages. Delivery itself is a hosted collaborator; the
// shop only renders and hands over.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// default in development and whenever no provider is configured.
type LogMailer struct {
	From   string
	Logger *zap.Logger
}

func (l LogMailer) Send(_ context.Context, m Message) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("mail",
		zap.String("from", l.From),
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("html_bytes", len(m.HTML)),
	)
	return nil
}
