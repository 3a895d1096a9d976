package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"takedown_app_go/config"
	"takedown_app_go/db"
	"takedown_app_go/handlers"
	"takedown_app_go/logger"
	"takedown_app_go/middleware"
	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.LogFile, cfg.IsProduction())
	defer log.Sync()

	// Initialize database
	database, err := db.Open(cfg, logger.Module(log, "db"))
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close(database)

	// Run migrations
	if err := db.AutoMigrate(database, &models.User{}, &models.Session{}, &models.Case{}); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	intakeCodec, err := services.NewIntakeCodec(cfg.IntakeSessionSecret)
	if err != nil {
		log.Fatal("failed to initialize intake sessions", zap.Error(err))
	}

	if !cfg.StripeCheckoutEnabled() {
		log.Warn("Stripe is not configured, checkout is disabled")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	mailer := services.NewMailerFromConfig(cfg, logger.Module(log, "email"))
	if mailer == nil {
		log.Warn("no email provider configured, case emails will be skipped")
	}
	dispatcher := services.NewDispatcher(mailer, services.DispatcherConfig{
		From:       cfg.EmailFromAddress(),
		InternalTo: cfg.InternalAlertEmail,
		InternalCC: cfg.InternalCC,
	}, logger.Module(log, "email"))

	cases := services.NewCaseStore(database)
	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripePriceID, cfg.StripeWebhookSecret, nil)

	h := &handlers.Handler{
		Config:   cfg,
		DB:       database,
		Cases:    cases,
		Pipeline: services.NewIntakePipeline(cases, gateway, dispatcher, logger.Module(log, "intake")),
		Intake:   intakeCodec,
		Auth:     services.NewAuthService(database, cases, cfg, logger.Module(log, "auth")),
		Storage:  services.NewStorageFromConfig(context.Background(), cfg, logger.Module(log, "storage")),
		Log:      logger.Module(log, "http"),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(logger.Module(log, "access")))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit("12M"))
	e.Use(middleware.InjectConfig(cfg))
	e.Use(middleware.Maintenance(cfg.MaintenanceMode))
	e.Use(middleware.CSRF(cfg.IsProduction()))

	registerRoutes(e, h, cfg, database)

	// Start background cleanup job (runs every hour)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				removed, err := services.CleanupExpiredSessions(database)
				if err != nil {
					log.Error("error cleaning up expired sessions", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("expired sessions removed", zap.Int64("count", removed))
				}
			}
		}
	}()

	// Start server
	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("environment", cfg.Environment))
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopCleanup()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	// Let queued case emails finish before the database closes
	dispatcher.Wait()
}
