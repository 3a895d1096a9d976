package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakePageHandler(t *testing.T) {
	f := newHandlerFixture(t)
	c, rec := f.context(newRequest(http.MethodGet, "/intake?error=Try+again", nil), f.user)

	require.NoError(t, f.h.IntakePageHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Try again"`)
	assert.Contains(t, rec.Body.String(), `"checkoutEnabled":true`)
	assert.Contains(t, rec.Body.String(), `"Owner/Photographer"`)
}

func TestIntakeSubmitHandler(t *testing.T) {
	f := newHandlerFixture(t)

	submit := func(form url.Values) *httptest.ResponseRecorder {
		req := newRequest(http.MethodPost, "/intake/submit", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		c, rec := f.context(req, f.user)
		require.NoError(t, f.h.IntakeSubmitHandler(c))
		return rec
	}

	t.Run("StoresSessionAndRedirects", func(t *testing.T) {
		rec := submit(url.Values{"copyrightedWorkDescription": {"My photos"}, "email": {"me@example.com"}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/api/create-checkout-session", rec.Header().Get("Location"))

		cookie := findCookie(rec, intakeCookieName)
		require.NotNil(t, cookie)
		record, ok := f.h.Intake.Decode(cookie.Value)
		require.True(t, ok)
		assert.Equal(t, f.user.ID, record.UserID)
		assert.Equal(t, "My photos", record.Data.Description)
		assert.Zero(t, f.caseCount(t))
	})

	t.Run("InvalidInputRedirectsWithError", func(t *testing.T) {
		rec := submit(url.Values{"email": {"nope"}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, msgIntakeInvalid, errorMessage(t, rec.Header().Get("Location")))
		assert.Nil(t, findCookie(rec, intakeCookieName))
	})
}

func TestCreateCheckoutSessionHandler(t *testing.T) {
	t.Run("MissingSessionCreatesNoCase", func(t *testing.T) {
		f := newHandlerFixture(t)
		c, rec := f.context(newRequest(http.MethodGet, "/api/create-checkout-session", nil), f.user)

		require.NoError(t, f.h.CreateCheckoutSessionHandler(c))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, msgIntakeExpired, errorMessage(t, rec.Header().Get("Location")))
		assert.Zero(t, f.caseCount(t))
		assert.Zero(t, f.stripe.createdCount())
	})

	t.Run("SessionOfAnotherUserCreatesNoCase", func(t *testing.T) {
		f := newHandlerFixture(t)
		other := f.createUser(t, "other@example.com", "Other")
		req := newRequest(http.MethodGet, "/api/create-checkout-session", nil)
		req.AddCookie(f.intakeCookie(t, other.ID, services.CaseInput{Description: "x"}))
		c, rec := f.context(req, f.user)

		require.NoError(t, f.h.CreateCheckoutSessionHandler(c))
		assert.Equal(t, msgIntakeExpired, errorMessage(t, rec.Header().Get("Location")))
		assert.Zero(t, f.caseCount(t))
	})

	t.Run("CreatesCaseAndRedirectsToCheckout", func(t *testing.T) {
		f := newHandlerFixture(t)
		req := newRequest(http.MethodGet, "/api/create-checkout-session", nil)
		req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
		req.AddCookie(f.intakeCookie(t, f.user.ID, services.CaseInput{Description: "Leaked photos"}))
		c, rec := f.context(req, f.user)

		require.NoError(t, f.h.CreateCheckoutSessionHandler(c))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, testCheckoutURL, rec.Header().Get("Location"))

		cleared := findCookie(rec, intakeCookieName)
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)

		cases, err := f.h.Cases.ListCasesForUser(context.Background(), f.user.ID)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, models.PaymentStatusUnpaid, cases[0].PaymentStatus)
		assert.False(t, cases[0].EmailSent)

		require.Equal(t, 1, f.stripe.createdCount())
		form := f.stripe.created[0]
		assert.Equal(t, cases[0].ID, form.Get("metadata[caseId]"))
		assert.Equal(t, f.user.ID, form.Get("metadata[userId]"))
		assert.Equal(t, "https://app.example.com/intake/success?session_id={CHECKOUT_SESSION_ID}", form.Get("success_url"))
	})

	t.Run("GatewayFailureKeepsSession", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.stripe.failCreate = true
		req := newRequest(http.MethodGet, "/api/create-checkout-session", nil)
		req.AddCookie(f.intakeCookie(t, f.user.ID, services.CaseInput{Description: "x"}))
		c, rec := f.context(req, f.user)

		require.NoError(t, f.h.CreateCheckoutSessionHandler(c))
		assert.Equal(t, msgCheckoutFailed, errorMessage(t, rec.Header().Get("Location")))
		assert.Nil(t, findCookie(rec, intakeCookieName))
	})

	t.Run("CheckoutDisabled", func(t *testing.T) {
		f := newHandlerFixture(t, withoutStripe)
		req := newRequest(http.MethodGet, "/api/create-checkout-session", nil)
		req.AddCookie(f.intakeCookie(t, f.user.ID, services.CaseInput{Description: "x"}))
		c, rec := f.context(req, f.user)

		require.NoError(t, f.h.CreateCheckoutSessionHandler(c))
		assert.Equal(t, msgCheckoutUnavailable, errorMessage(t, rec.Header().Get("Location")))
		assert.Zero(t, f.caseCount(t))
	})
}

func TestCreateCheckoutSessionPostHandler(t *testing.T) {
	f := newHandlerFixture(t)
	c, rec := f.context(newRequest(http.MethodPost, "/api/create-checkout-session", nil), nil)

	require.NoError(t, f.h.CreateCheckoutSessionPostHandler(c))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Use GET /api/create-checkout-session")
}

func TestIntakeSuccessHandler(t *testing.T) {
	success := func(f *handlerFixture, query string) *httptest.ResponseRecorder {
		c, rec := f.context(newRequest(http.MethodGet, "/intake/success"+query, nil), f.user)
		require.NoError(t, f.h.IntakeSuccessHandler(c))
		return rec
	}

	t.Run("RedirectsToDashboardWithoutMutating", func(t *testing.T) {
		f := newHandlerFixture(t)
		created := f.createCase(t, f.user.ID, services.CaseInput{Description: "x"})
		f.stripe.setSession(f.user.ID, created.ID, testPriceID)

		rec := success(f, "?session_id=cs_test_1")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/dashboard", location.Path)
		assert.Equal(t, "1", location.Query().Get("caseCreated"))
		assert.Equal(t, created.ID, location.Query().Get("caseId"))
		assert.Equal(t, created.CaseNumber, location.Query().Get("caseNumber"))

		record, err := f.h.Cases.GetCase(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusUnpaid, record.PaymentStatus)
		assert.False(t, record.EmailSent)
	})

	t.Run("MissingSessionID", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := success(f, "")
		assert.Equal(t, "Missing checkout session reference.", errorMessage(t, rec.Header().Get("Location")))
	})

	t.Run("PriceMismatch", func(t *testing.T) {
		f := newHandlerFixture(t)
		created := f.createCase(t, f.user.ID, services.CaseInput{Description: "x"})
		f.stripe.setSession(f.user.ID, created.ID, "price_cheaper")

		rec := success(f, "?session_id=cs_test_1")
		assert.Equal(t, returnErrorMessage(services.ErrCheckoutMismatch), errorMessage(t, rec.Header().Get("Location")))

		record, err := f.h.Cases.GetCase(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusUnpaid, record.PaymentStatus)
	})

	t.Run("CaseOfAnotherUser", func(t *testing.T) {
		f := newHandlerFixture(t)
		other := f.createUser(t, "other@example.com", "Other")
		created := f.createCase(t, other.ID, services.CaseInput{Description: "x"})
		f.stripe.setSession(f.user.ID, created.ID, testPriceID)

		rec := success(f, "?session_id=cs_test_1")
		assert.Equal(t, "This case does not belong to your account.", errorMessage(t, rec.Header().Get("Location")))
	})
}

func TestCheckoutCancelHandler(t *testing.T) {
	f := newHandlerFixture(t)
	c, rec := f.context(newRequest(http.MethodGet, "/checkout/cancel", nil), nil)

	require.NoError(t, f.h.CheckoutCancelHandler(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/intake", rec.Header().Get("Location"))
}
