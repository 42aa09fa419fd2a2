package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// RequireActiveUser rejects principals whose account has been deactivated.
// Tokens issued before a soft delete stay cryptographically valid until they expire.
func RequireActiveUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.Active {
			return apperrors.NewUnauthorized("user account is inactive")
		}
		return c.Next()
	}
}
