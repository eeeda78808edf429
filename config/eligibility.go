package config

import (
	"strings"
	"time"
)

// EligibilityConfig covers the upstream SAM lookups, bulk submissions, and the completion webhook.
type EligibilityConfig struct {
	// MockMode answers lookups locally without calling SAM.gov.
	MockMode bool `env:"ELIG_API_MOCK" envDefault:"false"`

	SAM SAMConfig

	// BulkMaxItems caps the number of items in one bulk submission.
	BulkMaxItems int `env:"BULK_MAX_ITEMS" envDefault:"1000"`

	Webhook WebhookConfig
}

// SAMConfig configures the SAM.gov entity and exclusions endpoints.
type SAMConfig struct {
	EntityURL     string        `env:"SAM_ENTITY_API"     envDefault:"https://api.sam.gov/entity-information/v2/entities"`
	ExclusionsURL string        `env:"SAM_EXCLUSIONS_API" envDefault:"https://api.sam.gov/exclusions/v2/exclusions"`
	APIKey        string        `env:"SAM_API_KEY"`
	Timeout       time.Duration `env:"SAM_TIMEOUT"        envDefault:"15s"`
	// CacheTTL applies when Redis is enabled. Zero disables the lookup cache.
	CacheTTL time.Duration `env:"SAM_CACHE_TTL" envDefault:"15m"`
}

// WebhookConfig configures completion callbacks.
type WebhookConfig struct {
	// SigningKey enables the x-signature header when set.
	SigningKey string        `env:"ELIG_WEBHOOK_SIG"`
	Timeout    time.Duration `env:"WEBHOOK_TIMEOUT"  envDefault:"10s"`
}

// Sanitize applies guardrails to eligibility configuration values.
func (e *EligibilityConfig) Sanitize() {
	e.SAM.EntityURL = strings.TrimSpace(e.SAM.EntityURL)
	e.SAM.ExclusionsURL = strings.TrimSpace(e.SAM.ExclusionsURL)
	if e.SAM.Timeout <= 0 {
		e.SAM.Timeout = 15 * time.Second
	}
	if e.SAM.CacheTTL < 0 {
		e.SAM.CacheTTL = 0
	}
	if e.BulkMaxItems < 1 {
		e.BulkMaxItems = 1
	}
	if e.Webhook.Timeout <= 0 {
		e.Webhook.Timeout = 10 * time.Second
	}
}
