package main

import (
	"takedown_app_go/config"
	"takedown_app_go/handlers"
	"takedown_app_go/middleware"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func registerRoutes(e *echo.Echo, h *handlers.Handler, cfg *config.Config, database *gorm.DB) {
	signInLimiter := middleware.SignInRateLimiter()
	intakeLimiter := middleware.IntakeRateLimiter()
	checkoutLimiter := middleware.CheckoutRateLimiter()
	uploadLimiter := middleware.UploadRateLimiter()

	// Public routes (no authentication required)
	e.GET("/healthz", h.HealthHandler)
	e.GET("/signin", h.SignInHandler, signInLimiter.Middleware())
	e.GET("/auth/google/callback", h.GoogleCallbackHandler, signInLimiter.Middleware())
	e.POST("/logout", h.LogoutHandler)
	e.GET("/checkout/cancel", h.CheckoutCancelHandler)
	e.POST("/api/create-checkout-session", h.CreateCheckoutSessionPostHandler)

	// Stripe authenticates webhooks by signature
	e.POST("/api/webhooks/stripe", h.StripeWebhookHandler)

	// Protected routes (authentication required)
	protected := e.Group("")
	protected.Use(middleware.RequireAuth(database))
	{
		protected.GET("/dashboard", h.DashboardHandler)
		protected.GET("/intake", h.IntakePageHandler)
		protected.POST("/intake/submit", h.IntakeSubmitHandler, intakeLimiter.Middleware())
		protected.GET("/api/create-checkout-session", h.CreateCheckoutSessionHandler, checkoutLimiter.Middleware())
		protected.GET("/intake/success", h.IntakeSuccessHandler)
		protected.POST("/api/uploads/screenshots", h.UploadScreenshotHandler, uploadLimiter.Middleware())
		protected.GET("/api/cases/screenshots", h.DownloadScreenshotHandler)

		// Admin-only routes
		adminRoutes := protected.Group("/admin")
		adminRoutes.Use(middleware.RequireAdmin(cfg.AdminEmails))
		{
			adminRoutes.GET("/cases", h.AdminCasesHandler)
			adminRoutes.POST("/cases/status", h.AdminUpdateCaseStatusHandler)
			adminRoutes.GET("/cases/export", h.AdminExportCSVHandler)
			adminRoutes.GET("/cases/export.xlsx", h.AdminExportXLSXHandler)
		}
	}
}
