package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/api/dto"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/service"
)

// PasswordHandler exposes OTP-based password recovery.
type PasswordHandler struct {
	otp *service.OTPService
}

// NewPasswordHandler constructs handler.
func NewPasswordHandler(otp *service.OTPService) *PasswordHandler {
	return &PasswordHandler{otp: otp}
}

// RequestOTP handles POST /password/otp/request.
func (h *PasswordHandler) RequestOTP(c *fiber.Ctx) error {
	var req dto.OTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var (
		challenge *domain.OTPChallenge
		err       error
	)
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	switch {
	case strings.TrimSpace(req.IdentityID) != "":
		challenge, err = h.otp.RequestOTP(c.UserContext(), strings.TrimSpace(req.IdentityID))
	case identifier != "":
		kind, kindErr := parseKind(req.Kind)
		if kindErr != nil {
			return kindErr
		}
		challenge, err = h.otp.RequestOTPFor(c.UserContext(), kind, identifier)
	default:
		return domain.NewFieldError("identity_id", "is required unless kind and email or identifier are given")
	}
	if err != nil {
		return err
	}
	return ok(c, "verification code sent", fiber.Map{
		"identity_id": challenge.IdentityID,
		"expires_at":  challenge.ExpiresAt,
	})
}

// VerifyOTP handles POST /password/otp/verify.
func (h *PasswordHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.OTPVerifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.otp.VerifyOTP(c.UserContext(), req.IdentityID, req.Code); err != nil {
		return err
	}
	return ok(c, "code verified", nil)
}

// ResetPassword handles POST /password/reset.
func (h *PasswordHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.otp.ResetPassword(c.UserContext(), req.IdentityID, req.NewPassword); err != nil {
		return err
	}
	return ok(c, "password updated", nil)
}
