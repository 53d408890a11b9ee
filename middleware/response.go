package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error kinds reported in the "error" field of failure responses.
const (
	KindValidation   = "validation_error"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindGeneration   = "generation_failed"
	KindMail         = "mail_failed"
	KindStore        = "store_failed"
	KindInternal     = "internal_error"
)

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// ErrorResponse writes {status:false, error:kind, message}.
func ErrorResponse(c *fiber.Ctx, statusCode int, kind, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  false,
		"error":   kind,
		"message": message,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  false,
		"error":   KindValidation,
		"message": "Validation failed!",
		"data":    errors,
	})
}

// ClientIP prefers the proxy headers over the socket address. Only the first
// X-Forwarded-For hop is used.
func ClientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return c.IP()
}
