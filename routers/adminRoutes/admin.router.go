package adminRoutes

import (
	authController "certhub/controllers/auth"
	certificateController "certhub/controllers/certificate"
	"certhub/middleware"
	"certhub/models"
	authValidator "certhub/validators/auth"
	certificateValidator "certhub/validators/certificate"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, authCtl *authController.Controller, certCtl *certificateController.Controller, requireAuth fiber.Handler) {
	adminGroup := app.Group("/api/admin")

	adminGroup.Post("/register", authValidator.Register(), authCtl.Register(models.RoleAdmin))
	adminGroup.Post("/login", authValidator.Login(), authCtl.Login(models.RoleAdmin))

	adminOnly := middleware.RequireRole(models.RoleAdmin)

	// Accounts
	adminGroup.Get("/users", requireAuth, adminOnly, authCtl.ListUsers)
	adminGroup.Get("/users/:userId/certificates", requireAuth, adminOnly, authCtl.UserCertificates)

	// Certificate management
	certGroup := adminGroup.Group("/certificates", requireAuth, adminOnly)
	certGroup.Get("/", certCtl.List)
	certGroup.Get("/export", certCtl.Export)
	certGroup.Post("/", certificateValidator.Generate(), certCtl.Save)
	certGroup.Post("/generate", certificateValidator.Generate(), certCtl.Generate)
	certGroup.Post("/send", certificateValidator.Send(), certCtl.Send)
	certGroup.Post("/revoke", certificateValidator.Revoke(), certCtl.Revoke)
	certGroup.Post("/update-status", certificateValidator.UpdateStatus(), certCtl.UpdateStatus)
	certGroup.Delete("/:number", certCtl.Delete)
}
