package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/events"
	"github.com/carelink/healthcare-identity/internal/repository"
)

// CredentialsInput is what a doctor submits for review.
type CredentialsInput struct {
	Specialization  string
	LicenseNumber   string
	Clinic          string
	ExperienceYears int
	DocumentURL     string
}

// VerificationService drives the doctor credential review workflow.
type VerificationService struct {
	credentials *CredentialService
	requests    repository.VerificationRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	validate    *validator.Validate
	now         func() time.Time
}

// NewVerificationService builds the service.
func NewVerificationService(credentials *CredentialService, requests repository.VerificationRepository, dispatcher events.Dispatcher, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		credentials: credentials,
		requests:    requests,
		dispatcher:  dispatcher,
		logger:      logger,
		validate:    validator.New(),
		now:         time.Now,
	}
}

// ParseOutcome accepts APPROVE/APPROVED and REJECT/REJECTED in any case.
func ParseOutcome(raw string) (domain.VerificationStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "APPROVE", "APPROVED":
		return domain.VerificationApproved, nil
	case "REJECT", "REJECTED":
		return domain.VerificationRejected, nil
	}
	return "", domain.NewFieldError("outcome", "must be APPROVED or REJECTED")
}

// SubmitCredentials creates or replaces the doctor's pending request.
func (s *VerificationService) SubmitCredentials(ctx context.Context, doctorID string, in CredentialsInput) (*domain.VerificationRequest, error) {
	in.Specialization = strings.TrimSpace(in.Specialization)
	in.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	in.Clinic = strings.TrimSpace(in.Clinic)
	in.DocumentURL = strings.TrimSpace(in.DocumentURL)

	switch {
	case in.Specialization == "":
		return nil, domain.NewFieldError("specialization", "is required")
	case in.LicenseNumber == "":
		return nil, domain.NewFieldError("license_number", "is required")
	case in.ExperienceYears < 0:
		return nil, domain.NewFieldError("experience_years", "cannot be negative")
	}
	if in.DocumentURL != "" {
		if err := s.validate.Var(in.DocumentURL, "url"); err != nil {
			return nil, domain.NewFieldError("document_url", "must be a valid URL")
		}
	}

	doctor, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	req := &domain.VerificationRequest{
		DoctorID:        doctor.ID,
		Specialization:  in.Specialization,
		LicenseNumber:   in.LicenseNumber,
		Clinic:          in.Clinic,
		ExperienceYears: in.ExperienceYears,
		DocumentURL:     in.DocumentURL,
		Status:          domain.VerificationPending,
		SubmittedAt:     s.now().UTC(),
	}
	replaced, err := s.requests.SubmitPending(ctx, req)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventVerificationSubmitted,
		Recipient: events.RecipientFor(doctor),
		Payload:   events.VerificationSubmittedPayload{RequestID: req.ID, Replaced: replaced},
	})
	s.logger.Info("credentials submitted",
		zap.String("doctor_id", doctor.ID),
		zap.String("request_id", req.ID),
		zap.Bool("replaced", replaced))
	return req, nil
}

// ListPending returns pending requests, oldest submission first.
func (s *VerificationService) ListPending(ctx context.Context) ([]domain.VerificationRequest, error) {
	return s.requests.ListPending(ctx)
}

// Decide approves or rejects a pending request. Only one decision per request
// ever succeeds; later ones get domain.ErrAlreadyDecided.
func (s *VerificationService) Decide(ctx context.Context, requestID, adminID, outcome, note string) (*domain.VerificationRequest, error) {
	status, err := ParseOutcome(outcome)
	if err != nil {
		return nil, err
	}

	admin, err := s.credentials.GetByID(ctx, adminID)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("%w: unknown admin", domain.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}
	if admin.Kind != domain.KindAdmin {
		return nil, fmt.Errorf("%w: only admins may decide", domain.ErrForbidden)
	}

	req, err := s.requests.Decide(ctx, requestID, repository.Decision{
		Status:    status,
		AdminID:   admin.ID,
		Note:      strings.TrimSpace(note),
		DecidedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if doctor, err := s.credentials.GetByID(ctx, req.DoctorID); err == nil {
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:      events.EventVerificationDecided,
			Recipient: events.RecipientFor(doctor),
			Payload: events.VerificationDecidedPayload{
				RequestID: req.ID,
				Status:    req.Status,
				AdminID:   admin.ID,
				Note:      req.DecisionNote,
			},
		})
	}
	s.logger.Info("verification decided",
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("admin_id", admin.ID))
	return req, nil
}

// Status reports the doctor's latest request. Doctors who never submitted get
// VerificationNone and a nil request.
func (s *VerificationService) Status(ctx context.Context, doctorID string) (domain.VerificationStatus, *domain.VerificationRequest, error) {
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return "", nil, err
	}
	req, err := s.requests.LatestForDoctor(ctx, doctorID)
	if errors.Is(err, domain.ErrRequestNotFound) {
		return domain.VerificationNone, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return req.Status, req, nil
}

// History lists every transition of the doctor's requests in order.
func (s *VerificationService) History(ctx context.Context, doctorID string) ([]domain.VerificationEvent, error) {
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.requests.ListEvents(ctx, doctorID)
}

func (s *VerificationService) doctor(ctx context.Context, doctorID string) (*domain.Identity, error) {
	doctor, err := s.credentials.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Kind != domain.KindDoctor {
		return nil, domain.NewFieldError("doctor_id", "is not a doctor")
	}
	return doctor, nil
}
