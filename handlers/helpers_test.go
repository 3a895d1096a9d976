package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"takedown_app_go/config"
	"takedown_app_go/middleware"
	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPriceID       = "price_123"
	testWebhookSecret = "whsec_test_secret"
	testCheckoutURL   = "https://checkout.stripe.com/c/pay/cs_test_1"
	testIntakeSecret  = "0123456789abcdef0123456789abcdef"
)

// fakeStripe answers the two checkout session calls the gateway makes
type fakeStripe struct {
	server *httptest.Server

	mu         sync.Mutex
	session    string
	failCreate bool
	created    []url.Values
}

func newFakeStripe(t *testing.T) *fakeStripe {
	t.Helper()
	f := &fakeStripe{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
			if f.failCreate {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":{"type":"api_error","message":"upstream failure"}}`)
				return
			}
			body, _ := io.ReadAll(r.Body)
			form, _ := url.ParseQuery(string(body))
			f.created = append(f.created, form)
			fmt.Fprintf(w, `{"id":"cs_test_1","object":"checkout.session","url":%q}`, testCheckoutURL)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/checkout/sessions/"):
			fmt.Fprint(w, f.session)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"not found"}}`)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeStripe) backends() *stripe.Backends {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(f.server.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func (f *fakeStripe) setSession(userID, caseID, priceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = fmt.Sprintf(`{
		"id": "cs_test_1",
		"object": "checkout.session",
		"payment_status": "paid",
		"status": "complete",
		"amount_total": 4900,
		"currency": "usd",
		"client_reference_id": %q,
		"metadata": {"userId": %q, "caseId": %q},
		"line_items": {"object": "list", "data": [{
			"id": "li_1", "object": "item", "quantity": 1,
			"price": {"id": %q, "object": "price", "unit_amount": 4900, "currency": "usd"}
		}]}
	}`, userID, userID, caseID, priceID)
}

func (f *fakeStripe) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*services.Email
}

func (m *recordingMailer) Send(_ context.Context, email *services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type handlerFixture struct {
	e        *echo.Echo
	db       *gorm.DB
	h        *Handler
	stripe   *fakeStripe
	mailer   *recordingMailer
	notifier *services.Dispatcher
	user     *models.User
	now      time.Time
}

type fixtureOption func(cfg *config.Config)

func withoutStripe(cfg *config.Config) {
	cfg.StripeSecretKey = ""
	cfg.StripePriceID = ""
	cfg.StripeWebhookSecret = ""
}

func newHandlerFixture(t *testing.T, opts ...fixtureOption) *handlerFixture {
	t.Helper()
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", filepath.Join(t.TempDir(), "handlers.db"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&models.User{}, &models.Session{}, &models.Case{}))
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := &config.Config{
		Environment:         "test",
		IntakeSessionSecret: testIntakeSecret,
		StripeSecretKey:     "sk_test_123",
		StripePriceID:       testPriceID,
		StripeWebhookSecret: testWebhookSecret,
		AdminEmails:         []string{"admin@example.com"},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &handlerFixture{
		e:      echo.New(),
		db:     testDB,
		stripe: newFakeStripe(t),
		mailer: &recordingMailer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	codec, err := services.NewIntakeCodec(cfg.IntakeSessionSecret)
	require.NoError(t, err)

	log := zap.NewNop()
	cases := services.NewCaseStore(testDB)
	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripePriceID, cfg.StripeWebhookSecret, f.stripe.backends())
	f.notifier = services.NewDispatcher(f.mailer, services.DispatcherConfig{
		From:       "StopTheTea Support <support@stopthetea.com>",
		InternalTo: "alerts@example.com",
	}, log)

	f.h = &Handler{
		Config:   cfg,
		DB:       testDB,
		Cases:    cases,
		Pipeline: services.NewIntakePipeline(cases, gateway, f.notifier, log),
		Intake:   codec,
		Auth:     services.NewAuthService(testDB, cases, cfg, log),
		Storage:  services.NewLocalStorage(t.TempDir()),
		Log:      log,
		Now:      func() time.Time { return f.now },
	}

	f.user = f.createUser(t, "owner@example.com", "Case Owner")
	return f
}

func (f *handlerFixture) createUser(t *testing.T, email, name string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: name}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

// context builds an echo context for req, signed in as user when non-nil
func (f *handlerFixture) context(req *http.Request, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if user != nil {
		c.Set(middleware.ContextKeyUser, user)
	}
	return c, rec
}

func (f *handlerFixture) intakeCookie(t *testing.T, userID string, payload services.CaseInput) *http.Cookie {
	t.Helper()
	value, err := f.h.Intake.Encode(userID, payload, f.now)
	require.NoError(t, err)
	return &http.Cookie{Name: intakeCookieName, Value: value}
}

func (f *handlerFixture) createCase(t *testing.T, userID string, input services.CaseInput) *models.Case {
	t.Helper()
	created, err := f.h.Cases.CreateCase(context.Background(), userID, input)
	require.NoError(t, err)
	return created
}

func (f *handlerFixture) caseCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Case{}).Count(&count).Error)
	return count
}

func newRequest(method, target string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, target, body)
}

// tamper flips one character in the middle of an encoded value
func tamper(value string) string {
	mid := len(value) / 2
	replacement := byte('A')
	if value[mid] == 'A' {
		replacement = 'B'
	}
	return value[:mid] + string(replacement) + value[mid+1:]
}

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func errorMessage(t *testing.T, location string) string {
	t.Helper()
	parsed, err := url.Parse(location)
	require.NoError(t, err)
	require.Equal(t, "/intake", parsed.Path)
	return parsed.Query().Get("error")
}
