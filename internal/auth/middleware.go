package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/domain"
	apperrors "github.com/carelink/healthcare-identity/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	IdentityID string
	Kind       domain.IdentityKind
	Token      string
}

// SessionValidator resolves opaque tokens to live sessions.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
}

// AuthMiddleware validates bearer tokens against the server-side session store.
type AuthMiddleware struct {
	sessions SessionValidator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c)
	if err != nil {
		return err
	}

	session, err := m.sessions.Validate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{
		IdentityID: session.IdentityID,
		Kind:       session.Kind,
		Token:      session.Token,
	})
	return c.Next()
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
