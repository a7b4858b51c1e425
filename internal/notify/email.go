package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailSender delivers HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPEmail sends mail through an SMTP relay.
type SMTPEmail struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPEmail builds a sender. It returns nil when no SMTP host is configured.
func NewSMTPEmail(host string, port int, user, password, from string) *SMTPEmail {
	if host == "" {
		return nil
	}
	d := gomail.NewDialer(host, port, user, password)
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	if from == "" {
		from = user
	}
	return &SMTPEmail{dialer: d, from: from}
}

// SendEmail implements EmailSender.
func (s *SMTPEmail) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := sendWithContext(ctx, func() error { return s.dialer.DialAndSend(m) }); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
