// Package mailer delivers district alert emails.
package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("mailer")

// SendGrid sends plain-text mail through the SendGrid v3 API.
type SendGrid struct {
	fromEmail string
	fromName  string
	client    *sendgrid.Client
}

// NewSendGrid creates a SendGrid mailer. An empty host selects the default
// API host; set it for regional endpoints such as https://api.eu.sendgrid.com.
func NewSendGrid(apiKey, host, fromEmail, fromName string) *SendGrid {
	request := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	request.Method = "POST"
	return &SendGrid{
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    &sendgrid.Client{Request: request},
	}
}

// Send implements port.Mailer.
func (m *SendGrid) Send(ctx context.Context, to, subject, body string) error {
	ctx, span := tracer.Start(ctx, "SendGrid.Send")
	defer span.End()

	from := mail.NewEmail(m.fromName, m.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "")

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid error: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
