package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/domain"
	apperrors "github.com/carelink/healthcare-identity/pkg/util/errorutil"
)

// RequireKind ensures the principal is one of the allowed identity kinds.
func RequireKind(allowed ...domain.IdentityKind) fiber.Handler {
	allowedSet := make(map[domain.IdentityKind]struct{}, len(allowed))
	for _, kind := range allowed {
		allowedSet[kind] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Kind]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyKind ensures the caller is authenticated.
func RequireAnyKind() fiber.Handler {
	return RequireKind()
}
