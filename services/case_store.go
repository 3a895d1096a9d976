package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"takedown_app_go/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// CaseNumberPrefix is prepended to every generated case number
	CaseNumberPrefix = "STT"
	// caseNumberLength is the count of random characters after the prefix
	caseNumberLength = 8
	// maxCaseNumberAttempts bounds retries on a unique index collision
	maxCaseNumberAttempts = 5

	caseNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	// ErrInvalidStatus is returned for a status outside the known lifecycle values
	ErrInvalidStatus = errors.New("invalid status provided")
	// ErrCaseNotFound is returned when no case matches the given id
	ErrCaseNotFound = errors.New("case not found")
	// ErrInvalidCaseInput wraps field validation failures on a case payload
	ErrInvalidCaseInput = errors.New("invalid case input")
)

var caseInputValidator = validator.New()

// ScreenshotRef points at an uploaded evidence image, by storage key or URL.
type ScreenshotRef struct {
	FileName   string `json:"fileName,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	URL        string `json:"url,omitempty"`
	StorageKey string `json:"storageKey,omitempty"`
}

// DMCADetails carries the legal notice fields of an intake.
type DMCADetails struct {
	OwnershipType               models.OwnershipType `json:"ownershipType"`
	CopyrightedWorkDescription  *string              `json:"copyrightedWorkDescription,omitempty"`
	DateCreated                 *time.Time           `json:"dateCreated,omitempty"`
	OriginalPublicationLocation *string              `json:"originalPublicationLocation,omitempty"`
	PlatformUsername            *string              `json:"platformUsername,omitempty"`
	PlatformProfileURL          *string              `json:"platformProfileUrl,omitempty"`
	WhereContentAppears         *string              `json:"whereContentAppears,omitempty"`
	CommentsOrCaptions          *string              `json:"commentsOrCaptions,omitempty"`
	FullLegalName               *string              `json:"fullLegalName,omitempty"`
	AddressLine1                *string              `json:"addressLine1,omitempty"`
	AddressLine2                *string              `json:"addressLine2,omitempty"`
	City                        *string              `json:"city,omitempty"`
	State                       *string              `json:"state,omitempty"`
	Zip                         *string              `json:"zip,omitempty"`
	Country                     *string              `json:"country,omitempty"`
	Email                       *string              `json:"email,omitempty" validate:"omitempty,email"`
	Phone                       *string              `json:"phone,omitempty"`
	ElectronicSignature         *string              `json:"electronicSignature,omitempty"`
	SignatureDate               *time.Time           `json:"signatureDate,omitempty"`
}

// CaseInput is the payload a case is created from. It is also what the intake
// session cookie carries between form submission and checkout.
type CaseInput struct {
	TargetPlatform string             `json:"targetPlatform,omitempty"`
	Description    string             `json:"description" validate:"required,max=10000"`
	Status         *models.CaseStatus `json:"status,omitempty"`
	ProfileLink    *string            `json:"profileLink,omitempty"`
	ContactEmail   *string            `json:"contactEmail,omitempty" validate:"omitempty,email"`
	Screenshots    []ScreenshotRef    `json:"screenshots,omitempty" validate:"max=20"`
	DMCA           *DMCADetails       `json:"dmcaDetails,omitempty"`
}

// AdminCaseSummary is the admin queue projection of a case with its owner's email.
type AdminCaseSummary struct {
	ID                 string               `json:"id"`
	CaseNumber         string               `json:"case_number"`
	Status             models.CaseStatus    `json:"status"`
	PaymentStatus      models.PaymentStatus `json:"payment_status"`
	TargetPlatform     string               `json:"target_platform"`
	ProfileLink        *string              `json:"profile_link,omitempty"`
	PlatformProfileURL *string              `json:"platform_profile_url,omitempty"`
	ContactEmail       *string              `json:"contact_email,omitempty"`
	ScreenshotKeys     datatypes.JSONSlice[string] `json:"screenshot_keys"`
	UserEmail          string               `json:"user_email"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// PlatformLink prefers the submitted profile link over the DMCA profile URL
func (s *AdminCaseSummary) PlatformLink() string {
	if s.ProfileLink != nil && *s.ProfileLink != "" {
		return *s.ProfileLink
	}
	if s.PlatformProfileURL != nil {
		return *s.PlatformProfileURL
	}
	return ""
}

// CaseStore persists cases. Every mutation after creation is a targeted
// column update so the browser return path and the webhook path never
// overwrite each other's fields.
type CaseStore struct {
	db *gorm.DB
}

// NewCaseStore creates a case store on the shared database handle
func NewCaseStore(db *gorm.DB) *CaseStore {
	return &CaseStore{db: db}
}

// ParseStatus converts raw input to a known case status
func ParseStatus(raw string) (models.CaseStatus, error) {
	status := models.CaseStatus(strings.TrimSpace(raw))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// ParsePaymentStatus converts raw input to a known payment status
func ParsePaymentStatus(raw string) (models.PaymentStatus, error) {
	status := models.PaymentStatus(strings.TrimSpace(raw))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// GenerateCaseNumber returns CaseNumberPrefix-XXXXXXXX with uppercase alphanumerics
func GenerateCaseNumber() (string, error) {
	max := big.NewInt(int64(len(caseNumberAlphabet)))
	var b strings.Builder
	b.WriteString(CaseNumberPrefix)
	b.WriteByte('-')
	for i := 0; i < caseNumberLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate case number: %w", err)
		}
		b.WriteByte(caseNumberAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeStorageKey reduces a screenshot reference to its storage key.
// Full URLs keep only their last path segment; blanks and unparsable URLs yield "".
func NormalizeStorageKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "http") {
		return trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	segments := strings.Split(parsed.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// ValidateCaseInput checks field formats and an explicitly supplied status
func ValidateCaseInput(input CaseInput) error {
	if input.Status != nil && !input.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *input.Status)
	}
	if err := caseInputValidator.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCaseInput, err)
	}
	return nil
}

func screenshotKeys(refs []ScreenshotRef) []string {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		raw := ref.StorageKey
		if raw == "" {
			raw = ref.URL
		}
		if key := NormalizeStorageKey(raw); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func buildCaseRecord(userID string, input CaseInput) *models.Case {
	record := &models.Case{
		UserID:         userID,
		Status:         models.CaseStatusReceived,
		PaymentStatus:  models.PaymentStatusUnpaid,
		TargetPlatform: input.TargetPlatform,
		Description:    input.Description,
		ProfileLink:    input.ProfileLink,
		ContactEmail:   input.ContactEmail,
	}
	if input.Status != nil {
		record.Status = *input.Status
	}
	if record.TargetPlatform == "" {
		record.TargetPlatform = models.DefaultTargetPlatform
	}
	if keys := screenshotKeys(input.Screenshots); len(keys) > 0 {
		record.ScreenshotKeys = keys
	}

	if dmca := input.DMCA; dmca != nil {
		record.ProfileLink = firstNonEmpty(input.ProfileLink, dmca.PlatformProfileURL)
		record.ContactEmail = firstNonEmpty(input.ContactEmail, dmca.Email)
		if dmca.OwnershipType != "" {
			ownership := string(dmca.OwnershipType)
			record.OwnershipType = &ownership
		}
		record.CopyrightedWorkDescription = dmca.CopyrightedWorkDescription
		record.DateCreated = dmca.DateCreated
		record.OriginalPublicationLocation = dmca.OriginalPublicationLocation
		record.PlatformUsername = dmca.PlatformUsername
		record.PlatformProfileURL = dmca.PlatformProfileURL
		record.WhereContentAppears = dmca.WhereContentAppears
		record.CommentsOrCaptions = dmca.CommentsOrCaptions
		record.FullLegalName = dmca.FullLegalName
		record.AddressLine1 = dmca.AddressLine1
		record.AddressLine2 = dmca.AddressLine2
		record.City = dmca.City
		record.State = dmca.State
		record.Zip = dmca.Zip
		record.Country = dmca.Country
		record.Email = dmca.Email
		record.Phone = dmca.Phone
		record.ElectronicSignature = dmca.ElectronicSignature
		record.SignatureDate = dmca.SignatureDate
	}
	return record
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

// CreateCase validates input, assigns a case number and persists a new case
// owned by userID with status RECEIVED (unless given) and payment UNPAID.
func (s *CaseStore) CreateCase(ctx context.Context, userID string, input CaseInput) (*models.Case, error) {
	if err := ValidateCaseInput(input); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxCaseNumberAttempts; attempt++ {
		number, err := GenerateCaseNumber()
		if err != nil {
			return nil, err
		}

		record := buildCaseRecord(userID, input)
		record.CaseNumber = number
		err = s.db.WithContext(ctx).Create(record).Error
		if err == nil {
			return record, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create case: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to assign a unique case number: %w", lastErr)
}

// GetCase loads a case with its owner
func (s *CaseStore) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	var record models.Case
	err := s.db.WithContext(ctx).Preload("User").Where("id = ?", caseID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return &record, nil
}

// ListCasesForUser returns the user's cases, newest first
func (s *CaseStore) ListCasesForUser(ctx context.Context, userID string) ([]models.Case, error) {
	var cases []models.Case
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&cases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

// ListAllCases returns every case for the admin queue, newest first
func (s *CaseStore) ListAllCases(ctx context.Context) ([]AdminCaseSummary, error) {
	var rows []AdminCaseSummary
	err := s.db.WithContext(ctx).
		Table("cases").
		Select(`cases.id, cases.case_number, cases.status, cases.payment_status, cases.target_platform,
			cases.profile_link, cases.platform_profile_url, cases.contact_email, cases.screenshot_keys,
			cases.created_at, cases.updated_at, COALESCE(users.email, '') AS user_email`).
		Joins("LEFT JOIN users ON users.id = cases.user_id").
		Order("cases.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return rows, nil
}

// UpdateStatus sets the lifecycle status. Unknown values are rejected before
// touching the row; writing the current status again is allowed.
func (s *CaseStore) UpdateStatus(ctx context.Context, caseID string, status models.CaseStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	result := s.db.WithContext(ctx).
		Model(&models.Case{}).
		Where("id = ?", caseID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update case status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// MarkPaid moves the payment status to PAID. It reports whether this call made
// the transition; an already paid case is left untouched.
func (s *CaseStore) MarkPaid(ctx context.Context, caseID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Case{}).
		Where("id = ? AND payment_status <> ?", caseID, models.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"status":         gorm.Expr("CASE WHEN status IS NULL OR status = '' THEN ? ELSE status END", models.CaseStatusReceived),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark case paid: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkPaymentFailed records a failed charge unless the case is already PAID.
func (s *CaseStore) MarkPaymentFailed(ctx context.Context, caseID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Case{}).
		Where("id = ? AND payment_status <> ?", caseID, models.PaymentStatusPaid).
		Update("payment_status", models.PaymentStatusFailed)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark case payment failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClaimEmailDispatch flips email_sent from false to true and reports whether
// this caller won the flip. Only the winner may send the case emails.
func (s *CaseStore) ClaimEmailDispatch(ctx context.Context, caseID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Case{}).
		Where("id = ? AND email_sent = ?", caseID, false).
		Update("email_sent", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim email dispatch: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkEmailSent sets the email_sent flag; repeating it is harmless
func (s *CaseStore) MarkEmailSent(ctx context.Context, caseID string) error {
	_, err := s.ClaimEmailDispatch(ctx, caseID)
	return err
}
