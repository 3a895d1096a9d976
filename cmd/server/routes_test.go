package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"takedown_app_go/config"
	"takedown_app_go/handlers"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	e := echo.New()
	registerRoutes(e, &handlers.Handler{}, &config.Config{}, nil)

	registered := map[string]bool{}
	for _, route := range e.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /intake",
		"POST /intake/submit",
		"GET /api/create-checkout-session",
		"POST /api/create-checkout-session",
		"GET /intake/success",
		"GET /checkout/cancel",
		"POST /api/webhooks/stripe",
		"GET /dashboard",
		"POST /api/uploads/screenshots",
		"GET /api/cases/screenshots",
		"GET /admin/cases",
		"POST /admin/cases/status",
		"GET /admin/cases/export",
		"GET /admin/cases/export.xlsx",
		"GET /signin",
		"GET /auth/google/callback",
		"POST /logout",
		"GET /healthz",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestProtectedRoutesRequireSignIn(t *testing.T) {
	e := echo.New()
	registerRoutes(e, &handlers.Handler{}, &config.Config{}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/intake", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin?callback=%2Fintake", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/intake/submit", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin?callback=%2Fintake", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/uploads/screenshots", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
