package handlers

import (
	"errors"
	"io"
	"net/http"

	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 65536

// StripeWebhookHandler verifies the signature over the raw body and applies
// the event. Non-2xx responses make Stripe redeliver.
func (h *Handler) StripeWebhookHandler(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Log.Error("webhook body exceeds limit", zap.Int64("limit_bytes", tooLarge.Limit))
			return jsonError(c, http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return jsonError(c, http.StatusBadRequest, "Unable to read request body")
	}

	err = h.Pipeline.HandleNotification(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, services.ErrInvalidSignature):
		h.Log.Warn("webhook signature verification failed", zap.Error(err))
		return jsonError(c, http.StatusBadRequest, "Invalid signature")
	case errors.Is(err, services.ErrPaymentNotConfigured):
		h.Log.Error("webhook received but signing secret is not configured")
		return jsonError(c, http.StatusInternalServerError, "Webhook not configured")
	default:
		h.Log.Error("webhook processing failed", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Webhook handler failed")
	}
}
