package userRoutes

import (
	authController "certhub/controllers/auth"
	"certhub/models"
	authValidator "certhub/validators/auth"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, ctl *authController.Controller, requireAuth fiber.Handler) {
	userGroup := app.Group("/api/users")

	userGroup.Post("/register", authValidator.Register(), ctl.Register(models.RoleUser))
	userGroup.Post("/login", authValidator.Login(), ctl.Login(models.RoleUser))
	userGroup.Get("/profile", requireAuth, ctl.Profile)
	userGroup.Put("/profile", requireAuth, authValidator.UpdateProfile(), ctl.UpdateProfile)
	userGroup.Post("/verify-token", requireAuth, ctl.VerifyToken)
	userGroup.Get("/certificates", requireAuth, ctl.MyCertificates)
}
