package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"takedown_app_go/config"
	"takedown_app_go/middleware"
	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeCallback(t *testing.T) {
	tests := map[string]string{
		"":                     defaultCallback,
		"/intake":              "/intake",
		"/intake/success?x=1":  "/intake/success?x=1",
		"https://evil.example": defaultCallback,
		"//evil.example/path":  defaultCallback,
		"/\\evil.example":      defaultCallback,
		"javascript:alert(1)":  defaultCallback,
	}
	for input, want := range tests {
		assert.Equal(t, want, safeCallback(input), input)
	}
}

func TestSignInHandler(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		f := newHandlerFixture(t)
		c, rec := f.context(newRequest(http.MethodGet, "/signin", nil), nil)
		require.NoError(t, f.h.SignInHandler(c))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("RedirectsToGoogle", func(t *testing.T) {
		f := newHandlerFixture(t, func(cfg *config.Config) {
			cfg.GoogleClientID = "client-id"
			cfg.GoogleClientSecret = "client-secret"
			cfg.GoogleRedirectURL = "http://localhost:8080/auth/google/callback"
		})
		f.h.Auth = services.NewAuthService(f.db, f.h.Cases, f.h.Config, f.h.Log)

		c, rec := f.context(newRequest(http.MethodGet, "/signin?callback=%2Fintake", nil), nil)
		require.NoError(t, f.h.SignInHandler(c))
		assert.Equal(t, http.StatusSeeOther, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "accounts.google.com", location.Host)

		state := findCookie(rec, oauthStateCookie)
		require.NotNil(t, state)
		assert.Equal(t, state.Value, location.Query().Get("state"))
		assert.Equal(t, "client-id", location.Query().Get("client_id"))

		callback := findCookie(rec, oauthCallbackCookie)
		require.NotNil(t, callback)
		assert.Equal(t, "/intake", callback.Value)
	})
}

func TestGoogleCallbackHandler_StateMismatch(t *testing.T) {
	f := newHandlerFixture(t)
	req := newRequest(http.MethodGet, "/auth/google/callback?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "different"})
	c, rec := f.context(req, nil)

	require.NoError(t, f.h.GoogleCallbackHandler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, findCookie(rec, middleware.SessionCookieName))
}

func TestLogoutHandler(t *testing.T) {
	f := newHandlerFixture(t)
	session, err := services.CreateSession(f.db, f.user.ID, "127.0.0.1", "test")
	require.NoError(t, err)

	req := newRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session.Token})
	c, rec := f.context(req, nil)

	require.NoError(t, f.h.LogoutHandler(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, -1, findCookie(rec, middleware.SessionCookieName).MaxAge)

	var count int64
	require.NoError(t, f.db.Model(&models.Session{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHealthHandler(t *testing.T) {
	f := newHandlerFixture(t)
	c, rec := f.context(newRequest(http.MethodGet, "/healthz", nil), nil)

	require.NoError(t, f.h.HealthHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
