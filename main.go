package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"certhub/config"
	"certhub/database"
	"certhub/middleware"
	"certhub/server"
	"certhub/services/archive"
	"certhub/services/capture"
	"certhub/services/issuance"
	"certhub/services/mailer"
	"certhub/services/qrcode"
	"certhub/services/renderer"
	"certhub/services/scheduler"
	"certhub/services/verification"
	"certhub/store"
	"certhub/utils"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDb(cfg.Database, cfg.IsDevelopment())
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db, logger); err != nil {
		return err
	}
	users := store.NewUserStore(db)

	var certs store.CertificateStore = store.NewGormCertificateStore(db)
	if cfg.CertificateStore == config.StoreMongo {
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background()) //nolint:errcheck

		mongoStore := store.NewMongoCertificateStore(client.Database(cfg.MongoDatabase))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return err
		}
		certs = mongoStore
		logger.Info("Using MongoDB certificate store", zap.String("database", cfg.MongoDatabase))
	}

	assets, err := renderer.LoadAssets(cfg.Render.AssetDir, cfg.Render.AssetManifest, logger)
	if err != nil {
		return err
	}
	var rendererOpts []renderer.Option
	if cfg.Render.TemplatePath != "" {
		tmpl, err := renderer.LoadTemplate(cfg.Render.TemplatePath)
		if err != nil {
			return err
		}
		rendererOpts = append(rendererOpts, renderer.WithTemplate(tmpl))
	}
	certRenderer, err := renderer.New(assets, logger, rendererOpts...)
	if err != nil {
		return err
	}

	capturer := capture.New(capture.Options{
		BrowserBin:     cfg.Render.BrowserBin,
		Timeout:        cfg.Render.Timeout,
		ViewportWidth:  cfg.Render.ViewportWidth,
		ViewportHeight: cfg.Render.ViewportHeight,
		DeviceScale:    cfg.Render.DeviceScale,
		PaperFormat:    cfg.Render.PaperFormat,
	}, logger)
	defer capturer.Close() //nolint:errcheck

	mail, err := mailer.New(ctx, cfg.Mail, logger)
	if err != nil {
		return err
	}

	deps := issuance.Deps{
		Store:               certs,
		QR:                  qrcode.NewEncoder(256),
		Renderer:            certRenderer,
		Capturer:            capturer,
		Mailer:              mail,
		Logger:              logger,
		VerificationBaseURL: cfg.VerificationBaseURL,
		Organization:        cfg.OrganizationName,
	}
	if cfg.Archive.Bucket != "" {
		pdfArchive, err := archive.NewS3Archive(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.Region, logger)
		if err != nil {
			return err
		}
		deps.Archiver = pdfArchive
	}
	issuer := issuance.NewService(deps)
	verifier := verification.NewService(certs, logger,
		verification.WithDedupeWindow(cfg.LogViewDedupeWindow),
		verification.WithLogViewCounting(cfg.LogViewCounts))

	expiry := scheduler.NewExpiryScheduler(certs, cfg.ExpirySchedule, logger)
	if err := expiry.Start(); err != nil {
		return err
	}

	app := server.New(server.Deps{
		Users:     users,
		Certs:     certs,
		Issuer:    issuer,
		Verifier:  verifier,
		Tokens:    middleware.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		SaltRound: cfg.SaltRound,
		Logger:    logger,
		AccessLog: true,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server is running", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		expiry.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	expiry.Stop(shutdownCtx)
	return app.ShutdownWithTimeout(30 * time.Second)
}
