package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"takedown_app_go/config"
	"takedown_app_go/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const (
	// SessionTokenLength is the length of the session token in bytes (64 chars hex)
	SessionTokenLength = 32
	// DefaultSessionDuration is the default session duration (7 days)
	DefaultSessionDuration = 7 * 24 * time.Hour

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	placeholderCaseDescription = "Initial placeholder case created at sign-up."
)

var (
	// ErrSessionNotFound is returned for unknown session tokens
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned for sessions past their expiry
	ErrSessionExpired = errors.New("session expired")
	// ErrOAuthNotConfigured is returned when Google sign-in has no client credentials
	ErrOAuthNotConfigured = errors.New("google sign-in is not configured")
	// ErrOAuthProfile is returned when the provider profile lacks a usable email
	ErrOAuthProfile = errors.New("google profile is missing a verified email")
)

// GenerateSessionToken generates a cryptographically secure random token
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateOAuthState returns a random value for the OAuth state cookie
func GenerateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateSession creates a new session for a user
func CreateSession(db *gorm.DB, userID, ipAddress, userAgent string) (*models.Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(DefaultSessionDuration),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession validates a session token and returns the session with its user
func ValidateSession(db *gorm.DB, token string) (*models.Session, error) {
	var session models.Session
	err := db.Preload("User").Where("token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	if session.IsExpired() {
		db.Delete(&session)
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// DeleteSession deletes a session (logout)
func DeleteSession(db *gorm.DB, token string) error {
	if err := db.Where("token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes all expired sessions and reports how many were deleted
func CleanupExpiredSessions(db *gorm.DB) (int64, error) {
	result := db.Where("expires_at < ?", time.Now()).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GoogleProfile is the subset of the Google userinfo response used for sign-in
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// AuthService signs users in with Google and keeps the local user table in sync.
type AuthService struct {
	db          *gorm.DB
	cases       *CaseStore
	oauth       *oauth2.Config
	userInfoURL string
	log         *zap.Logger
}

// NewAuthService builds the sign-in service; OAuth stays disabled without client credentials
func NewAuthService(db *gorm.DB, cases *CaseStore, cfg *config.Config, log *zap.Logger) *AuthService {
	svc := &AuthService{db: db, cases: cases, userInfoURL: googleUserInfoURL, log: log}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		svc.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}
	return svc
}

// OAuthEnabled reports whether Google sign-in can be offered
func (s *AuthService) OAuthEnabled() bool {
	return s.oauth != nil
}

// LoginURL returns the Google consent URL for the given state
func (s *AuthService) LoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// CompleteGoogleLogin exchanges the callback code, fetches the profile and
// upserts the local user.
func (s *AuthService) CompleteGoogleLogin(ctx context.Context, code string) (*models.User, error) {
	if s.oauth == nil {
		return nil, ErrOAuthNotConfigured
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	resp, err := s.oauth.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed getting user info: status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed reading user info: %w", err)
	}
	var profile GoogleProfile
	if err := json.Unmarshal(content, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	user, _, err := s.UpsertUser(ctx, profile)
	return user, err
}

// UpsertUser finds the user by provider subject or email, creating one when
// neither matches. A newly created user gets a placeholder case.
func (s *AuthService) UpsertUser(ctx context.Context, profile GoogleProfile) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" || !profile.VerifiedEmail {
		return nil, false, ErrOAuthProfile
	}

	now := time.Now()
	var user models.User
	query := s.db.WithContext(ctx).Where("email = ?", email)
	if profile.ID != "" {
		query = s.db.WithContext(ctx).Where("google_subject = ? OR email = ?", profile.ID, email)
	}
	err := query.First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{"last_login_at": now}
		if user.GoogleSubject == nil && profile.ID != "" {
			updates["google_subject"] = profile.ID
		}
		if user.Name == "" && profile.Name != "" {
			updates["name"] = profile.Name
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("failed to update user: %w", err)
		}
		return &user, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	user = models.User{Email: email, Name: profile.Name, LastLoginAt: &now}
	if profile.ID != "" {
		subject := profile.ID
		user.GoogleSubject = &subject
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", user.ID))

	s.createPlaceholderCase(ctx, &user)
	return &user, true, nil
}

// createPlaceholderCase gives a new account an initial case; failures are only logged
func (s *AuthService) createPlaceholderCase(ctx context.Context, user *models.User) {
	if s.cases == nil {
		return
	}
	input := CaseInput{
		TargetPlatform: models.DefaultTargetPlatform,
		Description:    placeholderCaseDescription,
	}
	if user.Email != "" {
		email := user.Email
		input.ContactEmail = &email
	}
	created, err := s.cases.CreateCase(ctx, user.ID, input)
	if err != nil {
		s.log.Error("failed to create placeholder case", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	s.log.Info("placeholder case created", zap.String("user_id", user.ID), zap.String("case_id", created.ID))
}

// IsAdmin reports whether email is on the admin allow-list (case-insensitive)
func IsAdmin(email string, adminEmails []string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range adminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}
