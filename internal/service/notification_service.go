package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/events"
	"github.com/carelink/healthcare-identity/internal/notify"
)

// NotificationService turns domain events into SMS, email and webhook deliveries.
type NotificationService struct {
	transports notify.Transports
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(transports notify.Transports, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		transports: transports,
		logger:     logger,
	}
}

// EventTypes lists the events this service delivers.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventOTPIssued,
		events.EventPasswordReset,
		events.EventVerificationSubmitted,
		events.EventVerificationDecided,
	}
}

// RegisterHandlers subscribes synchronous delivery to the dispatcher.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range n.EventTypes() {
		dispatcher.Subscribe(eventType, n.Handle)
	}
}

// Handle delivers one event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventOTPIssued:
		return n.handleOTPIssued(ctx, event)
	case events.EventPasswordReset:
		return n.handlePasswordReset(ctx, event)
	case events.EventVerificationSubmitted:
		return n.handleVerificationSubmitted(ctx, event)
	case events.EventVerificationDecided:
		return n.handleVerificationDecided(ctx, event)
	}
	return nil
}

func (n *NotificationService) handleOTPIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OTPIssuedPayload)
	if !ok {
		return fmt.Errorf("otp_issued: unexpected payload %T", event.Payload)
	}
	r := event.Recipient
	text := fmt.Sprintf("Your verification code is %s. It expires at %s UTC.",
		payload.Code, payload.ExpiresAt.UTC().Format("15:04"))

	switch {
	case n.transports.SMS != nil && r.Mobile != "":
		n.logger.Info("OTPIssued", zap.String("identity_id", r.IdentityID), zap.String("channel", "sms"))
		return n.transports.SMS.SendSMS(ctx, r.Mobile, text)
	case n.transports.Email != nil && r.Email != "":
		n.logger.Info("OTPIssued", zap.String("identity_id", r.IdentityID), zap.String("channel", "email"))
		return n.transports.Email.SendEmail(ctx, r.Email, "Your password reset code", paragraph(r.FullName, text))
	}

	n.logger.Info("OTPIssued", zap.String("identity_id", r.IdentityID), zap.String("channel", "none"))
	n.logger.Debug("otp code for development delivery",
		zap.String("identity_id", r.IdentityID),
		zap.String("code", payload.Code))
	return nil
}

func (n *NotificationService) handlePasswordReset(ctx context.Context, event events.Event) error {
	r := event.Recipient
	n.logger.Info("PasswordReset", zap.String("identity_id", r.IdentityID))
	return n.sendEmail(ctx, r, "Your password was changed",
		"Your password was reset and all existing sessions were signed out.")
}

func (n *NotificationService) handleVerificationSubmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("VerificationSubmitted",
		zap.String("doctor_id", event.Recipient.IdentityID),
		zap.Any("payload", event.Payload))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleVerificationDecided(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VerificationDecidedPayload)
	if !ok {
		return fmt.Errorf("verification_decided: unexpected payload %T", event.Payload)
	}
	n.logger.Info("VerificationDecided",
		zap.String("doctor_id", event.Recipient.IdentityID),
		zap.String("request_id", payload.RequestID),
		zap.String("status", string(payload.Status)))

	text := "Your credentials were approved. You can now accept appointments."
	if payload.Status == domain.VerificationRejected {
		text = "Your credentials were not approved."
		if payload.Note != "" {
			text += " Reviewer note: " + payload.Note
		}
	}
	return errors.Join(
		n.sendEmail(ctx, event.Recipient, "Credential review result", text),
		n.sendWebhook(ctx, event),
	)
}

func (n *NotificationService) sendEmail(ctx context.Context, r events.Recipient, subject, text string) error {
	if n.transports.Email == nil || r.Email == "" {
		n.logger.Debug("email delivery skipped", zap.String("identity_id", r.IdentityID), zap.String("subject", subject))
		return nil
	}
	return n.transports.Email.SendEmail(ctx, r.Email, subject, paragraph(r.FullName, text))
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	if n.transports.Webhook == nil {
		n.logger.Debug("webhook delivery skipped", zap.String("event_type", string(event.Type)))
		return nil
	}
	return n.transports.Webhook.Post(ctx, string(event.Type), event.Recipient.IdentityID, event.ID, event)
}

func paragraph(name, text string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(name), html.EscapeString(text))
}
