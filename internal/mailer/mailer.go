// Package mailer sends transactional email through Resend, or logs it when no key is set.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bizportal/internal/config"
	"bizportal/internal/metrics"

	"github.com/resend/resend-go/v2"
)

type Message struct {
	To       []string
	Subject  string
	HTML     string
	Template string // metrics label
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a Resend mailer when an API key is configured and a logging no-op otherwise.
func New(cfg config.ResendConfig) Mailer {
	if cfg.APIKey == "" {
		slog.Warn("RESEND_API_KEY not set, outgoing email will only be logged")
		return Noop{}
	}
	return &ResendMailer{client: resend.NewClient(cfg.APIKey), from: cfg.From}
}

type ResendMailer struct {
	client *resend.Client
	from   string
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	metrics.RecordEmail(msg.Template, err)
	if err != nil {
		slog.ErrorContext(ctx, "failed to send email", "error", err, "template", msg.Template)
		return fmt.Errorf("send email: %w", err)
	}

	slog.InfoContext(ctx, "email sent", "template", msg.Template, "resend_id", sent.Id)
	return nil
}

// Noop logs instead of sending.
type Noop struct{}

func (Noop) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "email skipped, mailer not configured",
		"template", msg.Template,
		"to", msg.To,
		"subject", msg.Subject,
	)
	metrics.RecordEmail(msg.Template, nil)
	return nil
}
