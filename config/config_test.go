package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIntakeSecret(t *testing.T) {
	assert.Error(t, ValidateIntakeSecret(""))
	assert.Error(t, ValidateIntakeSecret("too-short"))
	assert.NoError(t, ValidateIntakeSecret("exactly-16-chars"))
	assert.NoError(t, ValidateIntakeSecret("a-much-longer-intake-session-secret"))
}

func TestParseEmailList(t *testing.T) {
	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, ParseEmailList(" Admin@Example.com, ,ops@example.com "))
	assert.Empty(t, ParseEmailList(""))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG_ON", "yes")
	t.Setenv("FLAG_OFF", "0")
	t.Setenv("FLAG_BAD", "maybe")

	assert.True(t, getEnvBool("FLAG_ON", false))
	assert.False(t, getEnvBool("FLAG_OFF", true))
	assert.True(t, getEnvBool("FLAG_BAD", true))
	assert.False(t, getEnvBool("FLAG_UNSET", false))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SMTP_PORT_TEST", "2525")
	t.Setenv("SMTP_PORT_BAD", "abc")

	assert.Equal(t, 2525, getEnvInt("SMTP_PORT_TEST", 587))
	assert.Equal(t, 587, getEnvInt("SMTP_PORT_BAD", 587))
}

func TestConfigHelpers(t *testing.T) {
	cfg := &Config{Environment: "production", EmailFrom: "support@example.com", EmailFromName: "Support"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.StripeCheckoutEnabled())
	assert.Equal(t, "Support <support@example.com>", cfg.EmailFromAddress())

	cfg.StripeSecretKey = "sk_test"
	cfg.StripePriceID = "price_123"
	assert.True(t, cfg.StripeCheckoutEnabled())
}
