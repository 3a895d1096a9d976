package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
)

// RateLimitConfig defines the configuration for rate limiting
type RateLimitConfig struct {
	// Requests is the maximum number of requests allowed within the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
	// KeyFunc returns the bucket key for a request (defaults to IP)
	KeyFunc func(c echo.Context) string
	// Message is the error message returned when rate limit is exceeded
	Message string
}

// RateLimiter is a fixed-window limiter; counters expire with their window.
type RateLimiter struct {
	config RateLimitConfig
	store  *cache.Cache
	mu     sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c echo.Context) string {
			return c.RealIP()
		}
	}
	if config.Message == "" {
		config.Message = "Too many requests. Please try again later."
	}

	return &RateLimiter{
		config: config,
		store:  cache.New(config.Window, time.Minute),
	}
}

// Allow records a request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := rl.store.Add(key, 1, rl.config.Window); err == nil {
		return true
	}
	count, err := rl.store.IncrementInt(key, 1)
	if err != nil {
		// Expired between Add and Increment
		rl.store.Set(key, 1, rl.config.Window)
		return true
	}
	return count <= rl.config.Requests
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(rl.config.KeyFunc(c)) {
				return echo.NewHTTPError(http.StatusTooManyRequests, rl.config.Message)
			}
			return next(c)
		}
	}
}

// Pre-configured rate limiters for common use cases

// SignInRateLimiter limits sign-in attempts to 10 per minute per IP
func SignInRateLimiter() *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Requests: 10,
		Window:   1 * time.Minute,
		Message:  "Too many sign-in attempts. Please wait a minute before trying again.",
	})
}

// IntakeRateLimiter limits intake submissions to 10 per minute per IP
func IntakeRateLimiter() *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Requests: 10,
		Window:   1 * time.Minute,
		Message:  "Too many form submissions. Please wait before trying again.",
	})
}

// CheckoutRateLimiter limits checkout creation to 10 per minute per IP.
// Each intake submit is followed by one checkout request, so it needs its own bucket.
func CheckoutRateLimiter() *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Requests: 10,
		Window:   1 * time.Minute,
		Message:  "Too many checkout attempts. Please wait before trying again.",
	})
}

// UploadRateLimiter limits screenshot uploads to 30 per minute per IP
func UploadRateLimiter() *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Requests: 30,
		Window:   1 * time.Minute,
		Message:  "Too many uploads. Please slow down.",
	})
}
