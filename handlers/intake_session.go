package handlers

import (
	"errors"
	"net/http"

	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
)

const (
	intakeCookieName = "stt_intake_payload"
	// Browsers drop cookies over 4KB, leave room for name and attributes
	maxIntakeCookieSize = 3800
)

var errIntakeTooLarge = errors.New("intake submission too large")

func (h *Handler) intakeCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     intakeCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// storeIntakeSession encrypts the payload into the intake cookie
func (h *Handler) storeIntakeSession(c echo.Context, userID string, payload services.CaseInput) error {
	value, err := h.Intake.Encode(userID, payload, h.now())
	if err != nil {
		return err
	}
	if len(value) > maxIntakeCookieSize {
		return errIntakeTooLarge
	}
	c.SetCookie(h.intakeCookie(value, int(services.IntakeSessionTTL.Seconds())))
	return nil
}

// readIntakeSession returns the stored payload when it decrypts, belongs to
// userID and has not expired.
func (h *Handler) readIntakeSession(c echo.Context, userID string) (*services.CaseInput, bool) {
	cookie, err := c.Cookie(intakeCookieName)
	if err != nil {
		return nil, false
	}
	record, ok := h.Intake.Decode(cookie.Value)
	if !ok || !record.Usable(userID, h.now()) {
		return nil, false
	}
	return &record.Data, true
}

func (h *Handler) clearIntakeSession(c echo.Context) {
	c.SetCookie(h.intakeCookie("", -1))
}
