package notify

import (
	"context"

	"github.com/carelink/healthcare-identity/internal/config"
)

// WebhookSender posts a signed JSON document to an integration endpoint.
type WebhookSender interface {
	Post(ctx context.Context, eventType, subject, id string, document any) error
}

// Transports groups the configured delivery channels. Unconfigured channels are nil.
type Transports struct {
	SMS     SMSSender
	Email   EmailSender
	Webhook WebhookSender
}

// NewTransports builds every channel the configuration enables.
func NewTransports(cfg config.NotificationConfig) Transports {
	var t Transports
	if sms := NewTwilioSMS(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom); sms != nil {
		t.SMS = sms
	}
	if email := NewSMTPEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom); email != nil {
		t.Email = email
	}
	if hook := NewWebhook(cfg.WebhookURL, cfg.WebhookSecret); hook != nil {
		t.Webhook = hook
	}
	return t
}

// sendWithContext runs a provider call that has no context parameter and
// returns ctx.Err() as soon as ctx is done. An abandoned call finishes in the
// background, bounded by the provider client's own timeout.
func sendWithContext(ctx context.Context, send func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- send() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
