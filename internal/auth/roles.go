package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mc-fdc-dev/modmail/internal/domain"
)

// RequireAdmin ensures the caller holds an admin token.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeAdmin {
			return fiber.NewError(http.StatusForbidden, "admin required")
		}
		return c.Next()
	}
}
