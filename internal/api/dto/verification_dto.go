package dto

import (
	"time"

	"github.com/carelink/healthcare-identity/internal/domain"
)

// CredentialsSubmitRequest payload for POST /doctor/credentials.
type CredentialsSubmitRequest struct {
	DoctorID        string `json:"doctor_id"`
	Specialization  string `json:"specialization" validate:"required,max=120"`
	LicenseNumber   string `json:"license_number" validate:"required,max=64"`
	Clinic          string `json:"clinic" validate:"omitempty,max=200"`
	ExperienceYears int    `json:"experience_years" validate:"gte=0,lte=80"`
	DocumentURL     string `json:"document_url" validate:"omitempty,url"`
}

// DecisionRequest payload for POST /admin/verification/decide.
type DecisionRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	AdminID   string `json:"admin_id"`
	Outcome   string `json:"outcome" validate:"required"`
	Note      string `json:"note" validate:"omitempty,max=1000"`
}

// VerificationRequestResponse is the public view of a credential review.
type VerificationRequestResponse struct {
	ID              string     `json:"id"`
	DoctorID        string     `json:"doctor_id"`
	Specialization  string     `json:"specialization"`
	LicenseNumber   string     `json:"license_number"`
	Clinic          string     `json:"clinic,omitempty"`
	ExperienceYears int        `json:"experience_years"`
	DocumentURL     string     `json:"document_url,omitempty"`
	Status          string     `json:"status"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	DecidedBy       *string    `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	DecisionNote    string     `json:"decision_note,omitempty"`
}

// NewVerificationRequestResponse maps a domain request.
func NewVerificationRequestResponse(req *domain.VerificationRequest) *VerificationRequestResponse {
	if req == nil {
		return nil
	}
	return &VerificationRequestResponse{
		ID:              req.ID,
		DoctorID:        req.DoctorID,
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		Clinic:          req.Clinic,
		ExperienceYears: req.ExperienceYears,
		DocumentURL:     req.DocumentURL,
		Status:          string(req.Status),
		SubmittedAt:     req.SubmittedAt,
		DecidedBy:       req.DecidedBy,
		DecidedAt:       req.DecidedAt,
		DecisionNote:    req.DecisionNote,
	}
}

// VerificationEventResponse is one history entry.
type VerificationEventResponse struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewVerificationEventResponses maps history entries.
func NewVerificationEventResponses(events []domain.VerificationEvent) []VerificationEventResponse {
	out := make([]VerificationEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, VerificationEventResponse{
			ID:        e.ID,
			RequestID: e.RequestID,
			Action:    string(e.Action),
			ActorID:   e.ActorID,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
