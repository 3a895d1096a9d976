package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"takedown_app_go/config"
	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "stt_session"
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser = "user"
	// ContextKeySession is the context key for the session
	ContextKeySession = "session"
	// ContextKeyConfig is the context key for the application config
	ContextKeyConfig = "config"
	// DefaultSignInCallback is where sign-in returns to when the request can't be replayed
	DefaultSignInCallback = "/intake"
)

// InjectConfig makes the config available to middleware and handlers
func InjectConfig(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextKeyConfig, cfg)
			return next(c)
		}
	}
}

// SignInPath builds the sign-in URL that returns to the current request afterwards.
// Only GET requests can be revisited, so other methods return to the intake form.
func SignInPath(c echo.Context) string {
	callback := DefaultSignInCallback
	if req := c.Request(); req.Method == http.MethodGet || req.Method == http.MethodHead {
		callback = req.URL.RequestURI()
	}
	return "/signin?callback=" + url.QueryEscape(callback)
}

// wantsJSON reports whether an auth failure should be a status code instead of a redirect
func wantsJSON(c echo.Context) bool {
	req := c.Request()
	return req.Header.Get("HX-Request") == "true" ||
		strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(req.URL.Path, "/api/uploads") ||
		strings.HasPrefix(req.URL.Path, "/api/cases")
}

func unauthenticated(c echo.Context) error {
	if wantsJSON(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return c.Redirect(http.StatusSeeOther, SignInPath(c))
}

// RequireAuth is middleware that requires a valid session cookie
func RequireAuth(database *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return unauthenticated(c)
			}

			session, err := services.ValidateSession(database.WithContext(c.Request().Context()), cookie.Value)
			if err != nil {
				ClearSessionCookie(c)
				return unauthenticated(c)
			}

			c.Set(ContextKeyUser, &session.User)
			c.Set(ContextKeySession, session)
			return next(c)
		}
	}
}

// RequireAdmin allows only users on the admin allow-list. Must run after RequireAuth.
func RequireAdmin(adminEmails []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)
			if user == nil {
				return unauthenticated(c)
			}
			if !services.IsAdmin(user.Email, adminEmails) {
				return c.String(http.StatusForbidden, "Forbidden")
			}
			return next(c)
		}
	}
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetCurrentSession retrieves the current session from context
func GetCurrentSession(c echo.Context) *models.Session {
	session, ok := c.Get(ContextKeySession).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

func isProduction(c echo.Context) bool {
	cfg, ok := c.Get(ContextKeyConfig).(*config.Config)
	return ok && cfg.IsProduction()
}

// SetSessionCookie writes the session cookie for a new sign-in
func SetSessionCookie(c echo.Context, session *models.Session) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   isProduction(c),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie clears the session cookie
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction(c),
		SameSite: http.SameSiteLaxMode,
	})
}
