package certificateRoutes

import (
	certificateController "certhub/controllers/certificate"
	certificateValidator "certhub/validators/certificate"

	"github.com/gofiber/fiber/v2"
)

// SetupCertificateRoutes registers the public issuance and verification routes.
func SetupCertificateRoutes(app *fiber.App, ctl *certificateController.Controller) {
	app.Post("/generate-certificate", certificateValidator.Generate(), ctl.Generate)
	app.Post("/send-certificate", certificateValidator.Send(), ctl.Send)
	app.Get("/verify", ctl.VerifyPage)

	apiGroup := app.Group("/api")
	apiGroup.Get("/verify-certificate/:number", ctl.Verify)
	apiGroup.Get("/certificates/verify/:number", ctl.Verify)
	apiGroup.Post("/certificates/log-view", certificateValidator.LogView(), ctl.LogView)
}
