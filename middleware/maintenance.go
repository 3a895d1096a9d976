package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// MaintenanceMessage is shown to every blocked request while maintenance is on
const MaintenanceMessage = "StopTheTea is undergoing maintenance. Please try again later."

var maintenanceAllowedPrefixes = []string{
	"/api/webhooks",
	"/healthz",
	"/static",
	"/favicon",
	"/robots",
}

// Maintenance answers 503 for everything except webhooks and health checks
// when enabled. API paths get JSON, pages get plain text.
func Maintenance(enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !enabled {
			return next
		}
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, prefix := range maintenanceAllowedPrefixes {
				if strings.HasPrefix(path, prefix) {
					return next(c)
				}
			}

			c.Response().Header().Set("Retry-After", "3600")
			if strings.HasPrefix(path, "/api") {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": MaintenanceMessage})
			}
			return c.String(http.StatusServiceUnavailable, MaintenanceMessage)
		}
	}
}
