package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RequireRole returns a middleware that lets through only tokens carrying role.
// It must run after JWTMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserID(c); !ok {
			return ErrorResponse(c, fiber.StatusUnauthorized, KindUnauthorized, "Unauthorized: User ID not found")
		}

		if got, _ := c.Locals(LocalRole).(string); got != role {
			return ErrorResponse(c, fiber.StatusForbidden, KindForbidden, "You do not have permission to access this resource!")
		}
		return c.Next()
	}
}
