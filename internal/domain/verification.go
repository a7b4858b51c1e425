package domain

import "time"

// VerificationStatus is the lifecycle state of a doctor's credential review.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "NONE"
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Terminal reports whether the status can no longer change.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationApproved || s == VerificationRejected
}

// VerificationRequest is a doctor's submitted credentials awaiting admin review.
type VerificationRequest struct {
	ID              string
	DoctorID        string
	Specialization  string
	LicenseNumber   string
	Clinic          string
	ExperienceYears int
	DocumentURL     string
	Status          VerificationStatus
	SubmittedAt     time.Time
	DecidedBy       *string
	DecidedAt       *time.Time
	DecisionNote    string
}

// VerificationAction names an entry in the append-only review history.
type VerificationAction string

const (
	ActionSubmitted   VerificationAction = "SUBMITTED"
	ActionResubmitted VerificationAction = "RESUBMITTED"
	ActionApproved    VerificationAction = "APPROVED"
	ActionRejected    VerificationAction = "REJECTED"
)

// VerificationEvent records one transition of a verification request.
type VerificationEvent struct {
	ID        string
	RequestID string
	DoctorID  string
	Action    VerificationAction
	ActorID   string
	Note      string
	CreatedAt time.Time
}
