package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"takedown_app_go/config"
	"takedown_app_go/middleware"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler holds the dependencies shared by every route
type Handler struct {
	Config   *config.Config
	DB       *gorm.DB
	Cases    *services.CaseStore
	Pipeline *services.IntakePipeline
	Intake   *services.IntakeCodec
	Auth     *services.AuthService
	Storage  services.StorageProvider
	Log      *zap.Logger
	// Now is overridable in tests
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// redirectWithError sends the browser back to the intake form with a message
func redirectWithError(c echo.Context, message string) error {
	return c.Redirect(http.StatusSeeOther, "/intake?error="+url.QueryEscape(message))
}

// requestOrigin is the scheme and host checkout should return the browser to
func requestOrigin(c echo.Context) string {
	if origin := c.Request().Header.Get(echo.HeaderOrigin); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	return c.Scheme() + "://" + c.Request().Host
}

func currentUser(c echo.Context) services.CurrentUser {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return services.CurrentUser{}
	}
	return services.CurrentUser{ID: user.ID, Email: user.Email, Name: user.Name}
}

func jsonError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
