package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/api/dto"
	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/service"
	apperrors "github.com/carelink/healthcare-identity/pkg/util/errorutil"
)

// IdentityHandler exposes signup, login, logout and the caller's own profile.
type IdentityHandler struct {
	credentials  *service.CredentialService
	sessions     *service.SessionService
	verification *service.VerificationService
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(credentials *service.CredentialService, sessions *service.SessionService, verification *service.VerificationService) *IdentityHandler {
	return &IdentityHandler{credentials: credentials, sessions: sessions, verification: verification}
}

// Signup handles POST /signup.
func (h *IdentityHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return err
	}

	identity, err := h.credentials.Signup(c.UserContext(), service.SignupInput{
		Kind:     kind,
		FullName: req.FullName,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
		Profile: domain.Profile{
			Gender:      req.Gender,
			DateOfBirth: req.DateOfBirth,
			Address:     req.Address,
			PhotoURL:    req.PhotoURL,
		},
	})
	if err != nil {
		return err
	}
	return ok(c, "signup successful", fiber.Map{"identity_id": identity.ID})
}

// Login handles POST /login.
func (h *IdentityHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return err
	}

	session, identity, err := h.sessions.Login(c.UserContext(), kind, req.Identifier, req.Password)
	if err != nil {
		return err
	}
	return ok(c, "login successful", fiber.Map{
		"session_token": session.Token,
		"identity_id":   identity.ID,
		"kind":          string(identity.Kind),
		"expires_at":    session.ExpiresAt,
	})
}

// Logout handles POST /logout. A missing or unknown token still succeeds.
func (h *IdentityHandler) Logout(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderAuthorization) != "" {
		token, err := auth.BearerToken(c)
		if err != nil {
			return err
		}
		if err := h.sessions.Logout(c.UserContext(), token); err != nil {
			return err
		}
	}
	return ok(c, "logged out", nil)
}

// Me handles GET /me.
func (h *IdentityHandler) Me(c *fiber.Ctx) error {
	principal, found := auth.PrincipalFromContext(c)
	if !found {
		return apperrors.NewUnauthorized("authentication required")
	}
	identity, err := h.credentials.GetByID(c.UserContext(), principal.IdentityID)
	if err != nil {
		return err
	}

	fields := fiber.Map{"identity": dto.NewIdentityResponse(identity)}
	if identity.Kind == domain.KindDoctor {
		status, _, err := h.verification.Status(c.UserContext(), identity.ID)
		if err != nil {
			return err
		}
		fields["verification_status"] = string(status)
	}
	return ok(c, "ok", fields)
}

// UpdateProfile handles PATCH /me/profile.
func (h *IdentityHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, found := auth.PrincipalFromContext(c)
	if !found {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ProfileUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	identity, err := h.credentials.UpdateProfile(c.UserContext(), principal.IdentityID, req.ToDomain())
	if err != nil {
		return err
	}
	return ok(c, "profile updated", fiber.Map{"identity": dto.NewIdentityResponse(identity)})
}
