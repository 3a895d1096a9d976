package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"takedown_app_go/models"

	"github.com/patrickmn/go-cache"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/zap"
)

const (
	processedEventTTL = 24 * time.Hour

	eventCheckoutCompleted      = "checkout.session.completed"
	eventPaymentIntentFailed    = "payment_intent.payment_failed"
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
)

var (
	// ErrMissingCheckoutReference is returned when the return URL carries no session id
	ErrMissingCheckoutReference = errors.New("missing checkout session reference")
	// ErrCheckoutCaseMissing is returned when a valid checkout has no case id in its metadata
	ErrCheckoutCaseMissing = errors.New("checkout session has no case reference")
	// ErrCaseOwnership is returned when the referenced case is absent or owned by someone else
	ErrCaseOwnership = errors.New("case does not belong to user")
)

// CurrentUser is the authenticated identity the pipeline acts for.
type CurrentUser struct {
	ID    string
	Email string
	Name  string
}

// IntakePipeline takes a validated intake from checkout to a funded case.
// The browser return path only reads; the webhook path owns every payment
// mutation, and both use conditional updates on the same case row.
type IntakePipeline struct {
	cases    *CaseStore
	gateway  PaymentGateway
	notifier *Dispatcher
	seen     *cache.Cache
	log      *zap.Logger
}

// NewIntakePipeline wires the pipeline
func NewIntakePipeline(cases *CaseStore, gateway PaymentGateway, notifier *Dispatcher, log *zap.Logger) *IntakePipeline {
	return &IntakePipeline{
		cases:    cases,
		gateway:  gateway,
		notifier: notifier,
		seen:     cache.New(processedEventTTL, time.Hour),
		log:      log,
	}
}

// CheckoutEnabled reports whether the payment step is available
func (p *IntakePipeline) CheckoutEnabled() bool {
	return p.gateway != nil && p.gateway.CheckoutEnabled()
}

// BeginCheckout creates the UNPAID case for the intake and opens a checkout
// session referencing it, returning the gateway redirect URL.
func (p *IntakePipeline) BeginCheckout(ctx context.Context, user CurrentUser, input CaseInput, origin string) (string, *models.Case, error) {
	if !p.CheckoutEnabled() {
		return "", nil, ErrPaymentNotConfigured
	}

	created, err := p.cases.CreateCase(ctx, user.ID, input)
	if err != nil {
		return "", nil, err
	}
	log := p.log.With(zap.String("user_id", user.ID), zap.String("case_id", created.ID))

	redirectURL, err := p.gateway.CreateCheckout(ctx, CheckoutRequest{
		UserID:     user.ID,
		UserEmail:  user.Email,
		CaseID:     created.ID,
		CaseNumber: created.CaseNumber,
		Origin:     origin,
	})
	if err != nil {
		// The case stays UNPAID; admins see it in the queue without a payment
		log.Error("failed to create checkout session for case", zap.Error(err))
		return "", created, err
	}

	log.Info("checkout session created", zap.String("case_number", created.CaseNumber))
	return redirectURL, created, nil
}

// ConfirmReturn validates the checkout the browser returned with and resolves
// the case it paid for. It never mutates the case.
func (p *IntakePipeline) ConfirmReturn(ctx context.Context, user CurrentUser, sessionID string) (*models.Case, error) {
	if sessionID == "" {
		return nil, ErrMissingCheckoutReference
	}
	if !p.CheckoutEnabled() {
		return nil, ErrPaymentNotConfigured
	}
	log := p.log.With(zap.String("user_id", user.ID), zap.String("checkout_session_id", sessionID))

	session, err := p.gateway.RetrieveCompletedCheckout(ctx, sessionID)
	if err != nil {
		log.Warn("checkout session not confirmed", zap.Error(err))
		return nil, err
	}

	if err := ValidateReturnedCheckout(session, p.gateway.PriceID(), user.ID); err != nil {
		log.Warn("checkout session failed validation", zap.Error(err))
		return nil, err
	}

	caseID := session.Metadata[MetadataCaseID]
	if caseID == "" {
		log.Error("checkout session missing case reference")
		return nil, ErrCheckoutCaseMissing
	}

	record, err := p.cases.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			log.Error("checkout references unknown case", zap.String("case_id", caseID))
			return nil, ErrCaseOwnership
		}
		return nil, err
	}
	if record.UserID != user.ID {
		log.Error("checkout references case owned by another user", zap.String("case_id", caseID))
		return nil, ErrCaseOwnership
	}
	return record, nil
}

// HandleNotification verifies and applies a payment webhook. Returning nil
// acknowledges the event; any error asks the provider to retry.
func (p *IntakePipeline) HandleNotification(ctx context.Context, payload []byte, signatureHeader string) error {
	if p.gateway == nil {
		return ErrPaymentNotConfigured
	}
	event, err := p.gateway.VerifyNotification(payload, signatureHeader)
	if err != nil {
		return err
	}

	log := p.log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	if event.ID != "" {
		if _, dup := p.seen.Get(event.ID); dup {
			log.Info("duplicate webhook event ignored")
			return nil
		}
	}

	switch string(event.Type) {
	case eventCheckoutCompleted:
		err = p.handleCheckoutCompleted(ctx, event, log)
	case eventPaymentIntentFailed:
		err = p.handlePaymentFailed(ctx, event, log)
	case eventPaymentIntentSucceeded:
		log.Info("payment intent succeeded")
	default:
		log.Info("unhandled webhook event")
	}
	if err != nil {
		return err
	}

	if event.ID != "" {
		p.seen.SetDefault(event.ID, struct{}{})
	}
	return nil
}

func (p *IntakePipeline) handleCheckoutCompleted(ctx context.Context, event stripe.Event, log *zap.Logger) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}
	log = log.With(zap.String("checkout_session_id", session.ID))

	caseID := session.Metadata[MetadataCaseID]
	if caseID == "" {
		log.Error("completed checkout has no case reference")
		return nil
	}
	log = log.With(zap.String("case_id", caseID))

	record, err := p.cases.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			log.Warn("completed checkout references unknown case")
			return nil
		}
		return err
	}

	if record.PaymentStatus == models.PaymentStatusPaid && record.EmailSent {
		log.Info("case already paid")
		return nil
	}

	if record.PaymentStatus != models.PaymentStatusPaid {
		transitioned, err := p.cases.MarkPaid(ctx, caseID)
		if err != nil {
			return err
		}
		if transitioned {
			log.Info("case marked paid", zap.String("case_number", record.CaseNumber))
		}
	}

	// A paid case whose emails were never claimed (crash between the two
	// updates) still gets exactly one round of emails here.
	claimed, err := p.cases.ClaimEmailDispatch(ctx, caseID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	emailPayload := BuildCaseEmailPayload(record, record.User)
	p.notifier.SendInternalAlert(ctx, emailPayload)
	if emailPayload.Email != "" {
		p.notifier.SendCaseReceived(ctx, emailPayload)
	}
	return nil
}

func (p *IntakePipeline) handlePaymentFailed(ctx context.Context, event stripe.Event, log *zap.Logger) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to decode payment intent: %w", err)
	}

	caseID := intent.Metadata[MetadataCaseID]
	if caseID == "" {
		log.Warn("failed payment intent has no case reference", zap.String("payment_intent_id", intent.ID))
		return nil
	}

	applied, err := p.cases.MarkPaymentFailed(ctx, caseID)
	if err != nil {
		return err
	}

	reason := ""
	if intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Msg
	}
	log.Warn("payment failed for case",
		zap.String("case_id", caseID),
		zap.String("payment_intent_id", intent.ID),
		zap.Bool("status_updated", applied),
		zap.String("reason", reason),
	)
	return nil
}
