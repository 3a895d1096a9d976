package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"
	_ "time/tzdata"

	"takedown_app_go/config"
	"takedown_app_go/models"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/emails/*
var emailTemplates embed.FS

const (
	defaultCustomerName = "StopTheTea customer"
	submittedAtZone     = "America/Los_Angeles"
	submittedAtLayout   = "1/2/2006, 3:04:05 PM"
	emailSendTimeout    = 20 * time.Second

	templateCaseReceived    = "case_received"
	templateInternalNewCase = "internal_new_case"
)

// Email represents an outbound message
type Email struct {
	From     string
	To       []string
	CC       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

// ResendMailer sends through the Resend API
type ResendMailer struct {
	client *resend.Client
}

// NewResendMailer creates a Resend backed mailer
func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) Send(ctx context.Context, email *Email) error {
	params := &resend.SendEmailRequest{
		From:    email.From,
		To:      email.To,
		Cc:      email.CC,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// SMTPMailer sends through a plain SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer creates an SMTP mailer
func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, username, password)}
}

func (m *SMTPMailer) Send(_ context.Context, email *Email) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", email.From)
	msg.SetHeader("To", email.To...)
	if len(email.CC) > 0 {
		msg.SetHeader("Cc", email.CC...)
	}
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.TextBody)
	if email.HTMLBody != "" {
		msg.AddAlternative("text/html", email.HTMLBody)
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// ConsoleMailer logs emails instead of sending them (EMAIL_TEST_MODE)
type ConsoleMailer struct {
	log *zap.Logger
}

// NewConsoleMailer creates a logging mailer
func NewConsoleMailer(log *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) Send(_ context.Context, email *Email) error {
	m.log.Info("email logged (test mode, not sent)",
		zap.Strings("to", email.To),
		zap.Strings("cc", email.CC),
		zap.String("subject", email.Subject),
		zap.String("body", email.TextBody),
	)
	return nil
}

// NewMailerFromConfig picks console, Resend or SMTP delivery. It returns nil
// when no provider is configured; the dispatcher then skips sends.
func NewMailerFromConfig(cfg *config.Config, log *zap.Logger) Mailer {
	switch {
	case cfg.EmailTestMode:
		return NewConsoleMailer(log)
	case cfg.ResendAPIKey != "":
		return NewResendMailer(cfg.ResendAPIKey)
	case cfg.SMTPHost != "":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	default:
		return nil
	}
}

// CaseEmailPayload is the data rendered into both case emails.
type CaseEmailPayload struct {
	FullName       string
	Email          string
	CaseNumber     string
	TargetPlatform string
	ProfileLink    string
	Description    string
	Screenshots    []string
	SubmittedAt    string
}

// BuildCaseEmailPayload resolves the recipient name and address from the case
// and its owner, falling back in order of specificity.
func BuildCaseEmailPayload(record *models.Case, owner *models.User) CaseEmailPayload {
	payload := CaseEmailPayload{
		FullName:       defaultCustomerName,
		CaseNumber:     record.CaseNumber,
		TargetPlatform: record.TargetPlatform,
		ProfileLink:    record.PlatformLink(),
		Description:    record.Description,
		SubmittedAt:    FormatSubmittedAt(record.CreatedAt),
	}
	if payload.TargetPlatform == "" {
		payload.TargetPlatform = models.DefaultTargetPlatform
	}
	for _, key := range record.ScreenshotKeys {
		if key = strings.TrimSpace(key); key != "" {
			payload.Screenshots = append(payload.Screenshots, key)
		}
	}

	if owner == nil {
		owner = record.User
	}
	switch {
	case record.FullLegalName != nil && *record.FullLegalName != "":
		payload.FullName = *record.FullLegalName
	case owner != nil && owner.Name != "":
		payload.FullName = owner.Name
	}
	switch {
	case record.ContactEmail != nil && *record.ContactEmail != "":
		payload.Email = *record.ContactEmail
	case record.Email != nil && *record.Email != "":
		payload.Email = *record.Email
	case owner != nil:
		payload.Email = owner.Email
	}
	return payload
}

// FormatSubmittedAt renders a timestamp in US Pacific time
func FormatSubmittedAt(t time.Time) string {
	loc, err := time.LoadLocation(submittedAtZone)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(submittedAtLayout)
}

// DispatcherConfig holds sender and internal recipient addresses
type DispatcherConfig struct {
	From       string
	InternalTo string
	InternalCC string
}

// Dispatcher sends case emails off the request goroutine. Failures are logged
// and never returned to the caller.
type Dispatcher struct {
	mailer Mailer
	cfg    DispatcherConfig
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher; a nil mailer disables delivery
func NewDispatcher(mailer Mailer, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, cfg: cfg, log: log}
}

// SendCaseReceived emails the customer a receipt for their case
func (d *Dispatcher) SendCaseReceived(ctx context.Context, payload CaseEmailPayload) {
	if payload.Email == "" {
		d.log.Warn("no customer email for case receipt", zap.String("case_number", payload.CaseNumber))
		return
	}
	d.dispatch(ctx, templateCaseReceived, &Email{
		To:      []string{payload.Email},
		Subject: fmt.Sprintf("We Received Your Case – %s", payload.CaseNumber),
	}, payload)
}

// SendInternalAlert notifies the support inbox of a newly funded case
func (d *Dispatcher) SendInternalAlert(ctx context.Context, payload CaseEmailPayload) {
	email := &Email{
		To:      []string{d.cfg.InternalTo},
		Subject: fmt.Sprintf("New Case Submitted – %s", payload.CaseNumber),
	}
	if d.cfg.InternalCC != "" {
		email.CC = []string{d.cfg.InternalCC}
	}
	d.dispatch(ctx, templateInternalNewCase, email, payload)
}

// Wait blocks until every in-flight send has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, templateName string, email *Email, payload CaseEmailPayload) {
	log := d.log.With(zap.String("template", templateName), zap.String("case_number", payload.CaseNumber))
	if d.mailer == nil {
		log.Warn("email provider not configured, skipping send")
		return
	}

	htmlBody, textBody, err := renderEmailTemplate(templateName, payload)
	if err != nil {
		log.Error("failed to render email", zap.Error(err))
		return
	}
	email.From = d.cfg.From
	email.HTMLBody = htmlBody
	email.TextBody = textBody

	// Detach from the request so a finished response does not cancel delivery
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailSendTimeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.mailer.Send(sendCtx, email); err != nil {
			log.Error("failed to send email", zap.Strings("to", email.To), zap.Error(err))
			return
		}
		log.Info("email sent", zap.Strings("to", email.To))
	}()
}

func renderEmailTemplate(name string, data interface{}) (string, string, error) {
	htmlTmpl, err := htmltemplate.ParseFS(emailTemplates, "templates/emails/"+name+".html")
	if err != nil {
		return "", "", fmt.Errorf("failed to parse %s.html: %w", name, err)
	}
	textTmpl, err := texttemplate.ParseFS(emailTemplates, "templates/emails/"+name+".txt")
	if err != nil {
		return "", "", fmt.Errorf("failed to parse %s.txt: %w", name, err)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute %s.html: %w", name, err)
	}
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute %s.txt: %w", name, err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
