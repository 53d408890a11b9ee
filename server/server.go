// Package server assembles the fiber application from its dependencies.
package server

import (
	"time"

	authController "certhub/controllers/auth"
	certificateController "certhub/controllers/certificate"
	"certhub/middleware"
	"certhub/routers/adminRoutes"
	"certhub/routers/certificateRoutes"
	"certhub/routers/userRoutes"
	"certhub/services/issuance"
	"certhub/services/verification"
	"certhub/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Deps struct {
	Users     *store.UserStore
	Certs     store.CertificateStore
	Issuer    *issuance.Service
	Verifier  *verification.Service
	Tokens    *middleware.TokenIssuer
	SaltRound int
	Logger    *zap.Logger
	// AccessLog turns on the request logger middleware.
	AccessLog bool
}

func New(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "certhub",
		BodyLimit:    4 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: errorHandler(d.Logger),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE",
		AllowHeaders:  "Content-Type,Authorization,x-auth-token",
		ExposeHeaders: "Content-Disposition,X-Certificate-Number,X-Certificate-Persisted",
	}))
	if d.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Certificate service is running")
	})

	requireAuth := middleware.JWTMiddleware(d.Tokens)
	authCtl := authController.New(d.Users, d.Certs, d.Tokens, d.SaltRound, d.Logger)
	certCtl := certificateController.New(d.Issuer, d.Verifier, d.Certs, d.Logger)

	certificateRoutes.SetupCertificateRoutes(app, certCtl)
	userRoutes.SetupUserRoutes(app, authCtl, requireAuth)
	adminRoutes.SetupAdminRoutes(app, authCtl, certCtl, requireAuth)

	app.Use(func(c *fiber.Ctx) error {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "Route not found")
	})
	return app
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		kind := middleware.KindInternal
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			switch code {
			case fiber.StatusNotFound:
				kind = middleware.KindNotFound
			case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
				kind = middleware.KindValidation
			}
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		}
		return middleware.ErrorResponse(c, code, kind, err.Error())
	}
}
