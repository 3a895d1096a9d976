package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

var (
	// ErrPaymentNotConfigured is returned when the Stripe key, price or webhook secret is missing
	ErrPaymentNotConfigured = errors.New("payment provider is not configured")
	// ErrCheckoutNotComplete is returned for a checkout that is not paid and complete
	ErrCheckoutNotComplete = errors.New("checkout session is not paid and complete")
	// ErrCheckoutMismatch is returned when a returned checkout fails validation
	ErrCheckoutMismatch = errors.New("checkout session does not match expected purchase")
	// ErrInvalidSignature is returned when a webhook signature cannot be verified
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrCheckoutUnavailable is returned when Stripe created a session without a redirect URL
	ErrCheckoutUnavailable = errors.New("checkout session has no redirect url")
)

// Checkout metadata keys, set on both the session and its payment intent
const (
	MetadataCaseID     = "caseId"
	MetadataCaseNumber = "caseNumber"
	MetadataUserID     = "userId"
)

// CheckoutRequest describes the single-item purchase that funds one case.
type CheckoutRequest struct {
	UserID     string
	UserEmail  string
	CaseID     string
	CaseNumber string
	Origin     string
}

// PaymentGateway is the payment provider boundary used by the intake pipeline.
type PaymentGateway interface {
	CheckoutEnabled() bool
	PriceID() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	RetrieveCompletedCheckout(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	VerifyNotification(payload []byte, signatureHeader string) (stripe.Event, error)
}

// StripeGateway implements PaymentGateway with Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	priceID       string
	webhookSecret string
}

// NewStripeGateway builds a gateway. backends may be nil to use Stripe's API;
// tests point it at a local server.
func NewStripeGateway(secretKey, priceID, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	gateway := &StripeGateway{
		priceID:       priceID,
		webhookSecret: webhookSecret,
	}
	if secretKey != "" {
		gateway.api = client.New(secretKey, backends)
	}
	return gateway
}

// CheckoutEnabled reports whether checkout sessions can be created
func (g *StripeGateway) CheckoutEnabled() bool {
	return g.api != nil && g.priceID != ""
}

// PriceID returns the configured product price
func (g *StripeGateway) PriceID() string {
	return g.priceID
}

// CreateCheckout opens a payment-mode checkout session and returns its URL
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if !g.CheckoutEnabled() {
		return "", ErrPaymentNotConfigured
	}

	origin := strings.TrimSuffix(req.Origin, "/")
	metadata := map[string]string{
		MetadataCaseID:     req.CaseID,
		MetadataCaseNumber: req.CaseNumber,
		MetadataUserID:     req.UserID,
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		ClientReferenceID: stripe.String(req.UserID),
		SuccessURL:        stripe.String(origin + "/intake/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(origin + "/intake"),
	}
	if req.UserEmail != "" {
		params.CustomerEmail = stripe.String(req.UserEmail)
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	if session.URL == "" {
		return "", ErrCheckoutUnavailable
	}
	return session.URL, nil
}

// RetrieveCompletedCheckout loads a session with its priced line items and
// rejects anything that is not paid and complete.
func (g *StripeGateway) RetrieveCompletedCheckout(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if g.api == nil {
		return nil, ErrPaymentNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items.data.price")
	params.Context = ctx

	session, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid ||
		session.Status != stripe.CheckoutSessionStatusComplete {
		return nil, ErrCheckoutNotComplete
	}
	return session, nil
}

// VerifyNotification checks the Stripe-Signature header against the raw body
func (g *StripeGateway) VerifyNotification(payload []byte, signatureHeader string) (stripe.Event, error) {
	if g.webhookSecret == "" {
		return stripe.Event{}, ErrPaymentNotConfigured
	}
	if signatureHeader == "" {
		return stripe.Event{}, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// ValidateReturnedCheckout confirms a completed session bought exactly one unit
// of priceID at its list price, in its currency, for userID.
func ValidateReturnedCheckout(session *stripe.CheckoutSession, priceID, userID string) error {
	if session == nil || session.LineItems == nil || len(session.LineItems.Data) != 1 {
		return fmt.Errorf("%w: unexpected line items", ErrCheckoutMismatch)
	}

	item := session.LineItems.Data[0]
	if item.Price == nil {
		return fmt.Errorf("%w: line item has no price", ErrCheckoutMismatch)
	}
	if item.Price.ID != priceID || item.Quantity != 1 {
		return fmt.Errorf("%w: line item mismatch", ErrCheckoutMismatch)
	}

	unitAmount := item.Price.UnitAmount
	if unitAmount <= 0 || unitAmount != session.AmountTotal {
		return fmt.Errorf("%w: amount mismatch", ErrCheckoutMismatch)
	}
	if session.Currency == "" || session.Currency != item.Price.Currency {
		return fmt.Errorf("%w: currency mismatch", ErrCheckoutMismatch)
	}

	owner := CheckoutOwnerID(session)
	if owner == "" || owner != userID {
		return fmt.Errorf("%w: owner mismatch", ErrCheckoutMismatch)
	}
	return nil
}

// CheckoutOwnerID reads the purchasing user from metadata, falling back to the client reference
func CheckoutOwnerID(session *stripe.CheckoutSession) string {
	if session == nil {
		return ""
	}
	if owner := session.Metadata[MetadataUserID]; owner != "" {
		return owner
	}
	return session.ClientReferenceID
}
