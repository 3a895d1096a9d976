package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"takedown_app_go/middleware"
	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	msgCheckoutUnavailable = "Checkout is temporarily unavailable. Contact support."
	msgIntakeExpired       = "Your form data expired. Please submit again."
	msgIntakeInvalid       = "Please check your submission and try again."
	msgIntakeTooLarge      = "Your submission is too long. Please shorten the description and try again."
	msgCheckoutFailed      = "Unable to create checkout session."
	msgReturnFailed        = "We could not finish creating your case. Contact support with your receipt."
)

// IntakePageHandler returns what the intake form needs to render
func (h *Handler) IntakePageHandler(c echo.Context) error {
	user := currentUser(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":            map[string]string{"name": user.Name, "email": user.Email},
		"ownershipTypes":  models.OwnershipTypes,
		"defaultCountry":  defaultCountry,
		"targetPlatform":  models.DefaultTargetPlatform,
		"checkoutEnabled": h.Pipeline.CheckoutEnabled(),
		"error":           c.QueryParam("error"),
		"csrfToken":       middleware.GetCSRFToken(c),
	})
}

// IntakeSubmitHandler stores the submitted form in the intake cookie and
// hands off to checkout creation.
func (h *Handler) IntakeSubmitHandler(c echo.Context) error {
	user := currentUser(c)
	form, err := c.FormParams()
	if err != nil {
		return redirectWithError(c, msgIntakeInvalid)
	}

	payload, err := BuildCasePayload(form)
	if err != nil {
		h.Log.Info("intake submission rejected", zap.String("user_id", user.ID), zap.Error(err))
		return redirectWithError(c, msgIntakeInvalid)
	}

	if err := h.storeIntakeSession(c, user.ID, payload); err != nil {
		if errors.Is(err, errIntakeTooLarge) {
			return redirectWithError(c, msgIntakeTooLarge)
		}
		h.Log.Error("failed to store intake session", zap.String("user_id", user.ID), zap.Error(err))
		return redirectWithError(c, msgIntakeInvalid)
	}
	return c.Redirect(http.StatusSeeOther, "/api/create-checkout-session")
}

// CreateCheckoutSessionHandler creates the case for the stored intake and
// redirects to the hosted checkout page.
func (h *Handler) CreateCheckoutSessionHandler(c echo.Context) error {
	user := currentUser(c)
	if !h.Pipeline.CheckoutEnabled() {
		return redirectWithError(c, msgCheckoutUnavailable)
	}

	payload, ok := h.readIntakeSession(c, user.ID)
	if !ok {
		return redirectWithError(c, msgIntakeExpired)
	}

	redirectURL, _, err := h.Pipeline.BeginCheckout(c.Request().Context(), user, *payload, requestOrigin(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotConfigured):
			return redirectWithError(c, msgCheckoutUnavailable)
		case errors.Is(err, services.ErrInvalidCaseInput), errors.Is(err, services.ErrInvalidStatus):
			h.clearIntakeSession(c)
			return redirectWithError(c, msgIntakeInvalid)
		}
		h.Log.Error("checkout creation failed", zap.String("user_id", user.ID), zap.Error(err))
		return redirectWithError(c, msgCheckoutFailed)
	}

	h.clearIntakeSession(c)
	return c.Redirect(http.StatusSeeOther, redirectURL)
}

// CreateCheckoutSessionPostHandler rejects POSTs; checkout is opened by GET after the intake redirect
func (h *Handler) CreateCheckoutSessionPostHandler(c echo.Context) error {
	return jsonError(c, http.StatusMethodNotAllowed, "Use GET /api/create-checkout-session after submitting the intake form.")
}

// IntakeSuccessHandler verifies the returned checkout and sends the user to
// their dashboard. Payment state itself is only changed by the webhook.
func (h *Handler) IntakeSuccessHandler(c echo.Context) error {
	user := currentUser(c)
	record, err := h.Pipeline.ConfirmReturn(c.Request().Context(), user, c.QueryParam("session_id"))
	if err != nil {
		return redirectWithError(c, returnErrorMessage(err))
	}

	params := url.Values{}
	params.Set("caseCreated", "1")
	params.Set("caseId", record.ID)
	if record.CaseNumber != "" {
		params.Set("caseNumber", record.CaseNumber)
	}
	h.clearIntakeSession(c)
	return c.Redirect(http.StatusSeeOther, "/dashboard?"+params.Encode())
}

func returnErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrMissingCheckoutReference):
		return "Missing checkout session reference."
	case errors.Is(err, services.ErrPaymentNotConfigured):
		return "Checkout verification unavailable. Contact support with your receipt."
	case errors.Is(err, services.ErrCheckoutNotComplete):
		return "Payment not confirmed. Please try again."
	case errors.Is(err, services.ErrCheckoutMismatch):
		return "We could not verify this payment. Contact support with your receipt."
	case errors.Is(err, services.ErrCheckoutCaseMissing):
		return "We could not match your payment to a case. Contact support with your receipt."
	case errors.Is(err, services.ErrCaseOwnership):
		return "This case does not belong to your account."
	}
	return msgReturnFailed
}

// CheckoutCancelHandler sends an abandoned checkout back to the form
func (h *Handler) CheckoutCancelHandler(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/intake")
}
