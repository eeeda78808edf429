package config

import (
	"strings"
	"time"
)

// RateLimitBackend selects where admission counters live.
type RateLimitBackend string

const (
	// RateLimitBackendMemory keeps buckets in process memory.
	RateLimitBackendMemory RateLimitBackend = "memory"
	// RateLimitBackendRedis shares buckets across instances through Redis.
	RateLimitBackendRedis RateLimitBackend = "redis"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// APIKey guards the eligibility and job routes. Empty disables the check.
	APIKey string `env:"ELIG_API_KEY"`
	// AdminKey guards the admin routes. Empty disables the check.
	AdminKey string `env:"ELIG_ADMIN_KEY"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	RateLimit RateLimitConfig

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"15s"`
	// MaxBodyBytes bounds request bodies, including CSV uploads.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"10485760"`
}

// RateLimitConfig configures the fixed-window admission limiter.
type RateLimitConfig struct {
	// PerWindow is the number of requests admitted per key per window.
	PerWindow int              `env:"ELIG_RATE_LIMIT"    envDefault:"60"`
	Window    time.Duration    `env:"RATE_LIMIT_WINDOW"  envDefault:"60s"`
	Backend   RateLimitBackend `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.APIKey = strings.TrimSpace(h.APIKey)
	h.AdminKey = strings.TrimSpace(h.AdminKey)
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 10 << 20
	}
	h.RateLimit.Sanitize()
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.PerWindow < 1 {
		r.PerWindow = 1
	}
	if r.Window < time.Second {
		r.Window = time.Second
	}
	switch RateLimitBackend(strings.ToLower(string(r.Backend))) {
	case RateLimitBackendRedis:
		r.Backend = RateLimitBackendRedis
	default:
		r.Backend = RateLimitBackendMemory
	}
}
