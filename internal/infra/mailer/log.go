package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Log writes mails to the logger instead of sending them. Used when no
// SendGrid key is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging mailer.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Send implements port.Mailer.
func (m *Log) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("mail (not sent)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)),
	)
	return nil
}
