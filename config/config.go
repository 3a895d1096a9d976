package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// MinIntakeSecretLength is the minimum length accepted for INTAKE_SESSION_SECRET
	MinIntakeSecretLength = 16
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	AppURL      string
	UploadDir   string
	LogFile     string
	// Turso (libsql) remote database; DBPath is used when empty
	TursoDatabaseURL string
	TursoAuthToken   string
	// Intake session cookie encryption
	IntakeSessionSecret string
	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	// Email (Resend, falls back to SMTP when no API key)
	ResendAPIKey       string
	EmailFrom          string
	EmailFromName      string
	EmailTestMode      bool // When true, emails are logged instead of sent
	InternalAlertEmail string
	InternalCC         string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	// Access control
	AdminEmails     []string
	MaintenanceMode bool
	// Cloudflare R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	intakeSecret := os.Getenv("INTAKE_SESSION_SECRET")
	if err := ValidateIntakeSecret(intakeSecret); err != nil {
		log.Fatalf("[CRITICAL] %v", err)
	}

	appURL := getEnv("APP_URL", "http://localhost:8080")

	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "db/app.db"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppURL:              appURL,
		UploadDir:           getEnv("UPLOAD_DIR", "static/uploads"),
		LogFile:             getEnv("LOG_FILE", "logs/app.log"),
		TursoDatabaseURL:    getEnv("TURSO_DATABASE_URL", ""),
		TursoAuthToken:      getEnv("TURSO_AUTH_TOKEN", ""),
		IntakeSessionSecret: intakeSecret,
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		ResendAPIKey:        getEnv("RESEND_API_KEY", ""),
		EmailFrom:           getEnv("EMAIL_FROM", "support@stopthetea.com"),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "StopTheTea Support"),
		EmailTestMode:       getEnvBool("EMAIL_TEST_MODE", false),
		InternalAlertEmail:  getEnv("INTERNAL_ALERT_EMAIL", "support@stopthetea.com"),
		InternalCC:          getEnv("INTERNAL_CC", ""),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   getEnv("GOOGLE_REDIRECT_URL", strings.TrimSuffix(appURL, "/")+"/auth/google/callback"),
		AdminEmails:         ParseEmailList(os.Getenv("ADMIN_EMAILS")),
		MaintenanceMode:     getEnvBool("MAINTENANCE_MODE", false),
		R2AccountID:         getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:       getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:   getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:        getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:         getEnv("R2_PUBLIC_URL", ""),
	}
}

// IsProduction reports whether cookies and logs should use production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StripeCheckoutEnabled is false when checkout cannot be opened or verified
func (c *Config) StripeCheckoutEnabled() bool {
	return c.StripeSecretKey != "" && c.StripePriceID != ""
}

// EmailFromAddress formats the sender as "Name <address>"
func (c *Config) EmailFromAddress() string {
	if c.EmailFromName == "" {
		return c.EmailFrom
	}
	return fmt.Sprintf("%s <%s>", c.EmailFromName, c.EmailFrom)
}

// ValidateIntakeSecret rejects a missing or short intake session secret.
func ValidateIntakeSecret(secret string) error {
	if len(secret) < MinIntakeSecretLength {
		return fmt.Errorf("INTAKE_SESSION_SECRET must be set to at least %d characters", MinIntakeSecretLength)
	}
	return nil
}

// ParseEmailList splits a comma separated list, lowercasing and dropping blanks
func ParseEmailList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[WARNING] Invalid integer for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}
