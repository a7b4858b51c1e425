package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/api/dto"
	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/service"
	apperrors "github.com/carelink/healthcare-identity/pkg/util/errorutil"
)

// VerificationHandler exposes doctor credential submission and admin review.
type VerificationHandler struct {
	verification *service.VerificationService
}

// NewVerificationHandler constructs handler.
func NewVerificationHandler(verification *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

// Submit handles POST /doctor/credentials. Doctors submit only for themselves.
func (h *VerificationHandler) Submit(c *fiber.Ctx) error {
	principal, found := auth.PrincipalFromContext(c)
	if !found {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CredentialsSubmitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.DoctorID != "" && req.DoctorID != principal.IdentityID {
		return apperrors.NewForbidden("doctors may only submit their own credentials")
	}

	submitted, err := h.verification.SubmitCredentials(c.UserContext(), principal.IdentityID, service.CredentialsInput{
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		Clinic:          req.Clinic,
		ExperienceYears: req.ExperienceYears,
		DocumentURL:     req.DocumentURL,
	})
	if err != nil {
		return err
	}
	return ok(c, "credentials submitted", fiber.Map{
		"request_id": submitted.ID,
		"status":     string(submitted.Status),
	})
}

// Status handles GET /doctor/credentials/status.
func (h *VerificationHandler) Status(c *fiber.Ctx) error {
	doctorID, err := h.targetDoctor(c, true)
	if err != nil {
		return err
	}
	status, req, err := h.verification.Status(c.UserContext(), doctorID)
	if err != nil {
		return err
	}
	return ok(c, "ok", fiber.Map{
		"status":  string(status),
		"request": dto.NewVerificationRequestResponse(req),
	})
}

// History handles GET /doctor/credentials/history.
func (h *VerificationHandler) History(c *fiber.Ctx) error {
	doctorID, err := h.targetDoctor(c, false)
	if err != nil {
		return err
	}
	history, err := h.verification.History(c.UserContext(), doctorID)
	if err != nil {
		return err
	}
	return ok(c, "ok", fiber.Map{"events": dto.NewVerificationEventResponses(history)})
}

// targetDoctor resolves ?doctor_id= against the caller. Doctors may only read
// their own records; admins may read any; patients may read any doctor's
// status when patientsAllowed is set.
func (h *VerificationHandler) targetDoctor(c *fiber.Ctx, patientsAllowed bool) (string, error) {
	principal, found := auth.PrincipalFromContext(c)
	if !found {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	doctorID := strings.TrimSpace(c.Query("doctor_id"))

	switch principal.Kind {
	case domain.KindDoctor:
		if doctorID == "" {
			return principal.IdentityID, nil
		}
		if doctorID != principal.IdentityID {
			return "", apperrors.NewForbidden("doctors may only read their own verification")
		}
	case domain.KindPatient:
		if !patientsAllowed {
			return "", apperrors.NewForbidden("insufficient role")
		}
	}
	if doctorID == "" {
		return "", domain.NewFieldError("doctor_id", "is required")
	}
	return doctorID, nil
}

// Pending handles GET /admin/verification/pending.
func (h *VerificationHandler) Pending(c *fiber.Ctx) error {
	pending, err := h.verification.ListPending(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]*dto.VerificationRequestResponse, 0, len(pending))
	for i := range pending {
		out = append(out, dto.NewVerificationRequestResponse(&pending[i]))
	}
	return ok(c, "ok", fiber.Map{"requests": out})
}

// Decide handles POST /admin/verification/decide.
func (h *VerificationHandler) Decide(c *fiber.Ctx) error {
	principal, found := auth.PrincipalFromContext(c)
	if !found {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.DecisionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.AdminID != "" && req.AdminID != principal.IdentityID {
		return apperrors.NewForbidden("admin_id must match the authenticated admin")
	}

	decided, err := h.verification.Decide(c.UserContext(), req.RequestID, principal.IdentityID, req.Outcome, req.Note)
	if err != nil {
		return err
	}
	return ok(c, "decision recorded", fiber.Map{"request": dto.NewVerificationRequestResponse(decided)})
}
