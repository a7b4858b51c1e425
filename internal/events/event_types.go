package events

import (
	"time"

	"github.com/carelink/healthcare-identity/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOTPIssued             EventType = "otp_issued"
	EventPasswordReset         EventType = "password_reset"
	EventVerificationSubmitted EventType = "verification_submitted"
	EventVerificationDecided   EventType = "verification_decided"
)

// Recipient describes where a notification about the subject can be delivered.
type Recipient struct {
	IdentityID string              `json:"identity_id"`
	Kind       domain.IdentityKind `json:"kind"`
	FullName   string              `json:"full_name"`
	Email      string              `json:"email"`
	Mobile     string              `json:"mobile,omitempty"`
}

// RecipientFor builds a Recipient from an identity.
func RecipientFor(identity *domain.Identity) Recipient {
	return Recipient{
		IdentityID: identity.ID,
		Kind:       identity.Kind,
		FullName:   identity.Profile.FullName,
		Email:      identity.Email,
		Mobile:     identity.Mobile,
	}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Recipient Recipient   `json:"recipient"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OTPIssuedPayload carries the code to deliver. It never leaves the process
// except through the SMS or email transport.
type OTPIssuedPayload struct {
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationSubmittedPayload payload.
type VerificationSubmittedPayload struct {
	RequestID string `json:"request_id"`
	Replaced  bool   `json:"replaced"`
}

// VerificationDecidedPayload payload.
type VerificationDecidedPayload struct {
	RequestID string                    `json:"request_id"`
	Status    domain.VerificationStatus `json:"status"`
	AdminID   string                    `json:"admin_id"`
	Note      string                    `json:"note,omitempty"`
}
