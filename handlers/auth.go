package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"takedown_app_go/middleware"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	oauthStateCookie    = "stt_oauth_state"
	oauthCallbackCookie = "stt_oauth_callback"
	oauthCookieTTL      = 10 * time.Minute
	defaultCallback     = "/dashboard"
)

// safeCallback keeps post sign-in redirects on this site
func safeCallback(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return defaultCallback
	}
	return raw
}

func (h *Handler) setOAuthCookie(c echo.Context, name, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// SignInHandler starts Google sign-in, remembering where to return afterwards
func (h *Handler) SignInHandler(c echo.Context) error {
	if !h.Auth.OAuthEnabled() {
		return jsonError(c, http.StatusServiceUnavailable, "Sign-in is temporarily unavailable.")
	}

	state, err := services.GenerateOAuthState()
	if err != nil {
		h.Log.Error("failed to generate oauth state", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to start sign-in")
	}
	loginURL, err := h.Auth.LoginURL(state)
	if err != nil {
		return jsonError(c, http.StatusServiceUnavailable, "Sign-in is temporarily unavailable.")
	}

	maxAge := int(oauthCookieTTL.Seconds())
	h.setOAuthCookie(c, oauthStateCookie, state, maxAge)
	h.setOAuthCookie(c, oauthCallbackCookie, safeCallback(c.QueryParam("callback")), maxAge)
	return c.Redirect(http.StatusSeeOther, loginURL)
}

// GoogleCallbackHandler finishes sign-in and opens a session
func (h *Handler) GoogleCallbackHandler(c echo.Context) error {
	stateCookie, err := c.Cookie(oauthStateCookie)
	state := c.QueryParam("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		return jsonError(c, http.StatusBadRequest, "Sign-in expired. Please try again.")
	}
	if c.QueryParam("error") != "" || c.QueryParam("code") == "" {
		return jsonError(c, http.StatusBadRequest, "Sign-in was cancelled.")
	}

	callback := defaultCallback
	if cookie, err := c.Cookie(oauthCallbackCookie); err == nil {
		callback = safeCallback(cookie.Value)
	}
	h.setOAuthCookie(c, oauthStateCookie, "", -1)
	h.setOAuthCookie(c, oauthCallbackCookie, "", -1)

	user, err := h.Auth.CompleteGoogleLogin(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		if errors.Is(err, services.ErrOAuthProfile) {
			return jsonError(c, http.StatusForbidden, "Your Google account needs a verified email address.")
		}
		h.Log.Error("google sign-in failed", zap.Error(err))
		return jsonError(c, http.StatusBadGateway, "Unable to complete sign-in")
	}

	session, err := services.CreateSession(h.DB.WithContext(c.Request().Context()), user.ID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		h.Log.Error("failed to create session", zap.String("user_id", user.ID), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to complete sign-in")
	}

	middleware.SetSessionCookie(c, session)
	h.Log.Info("user signed in", zap.String("user_id", user.ID))
	return c.Redirect(http.StatusSeeOther, callback)
}

// LogoutHandler ends the current session
func (h *Handler) LogoutHandler(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := services.DeleteSession(h.DB.WithContext(c.Request().Context()), cookie.Value); err != nil {
			h.Log.Warn("failed to delete session", zap.Error(err))
		}
	}
	middleware.ClearSessionCookie(c)
	h.clearIntakeSession(c)
	return c.Redirect(http.StatusSeeOther, "/")
}
