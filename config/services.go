package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeDispatcher runs the job item dispatcher.
	ServiceModeDispatcher ServiceMode = "dispatcher"
	// ServiceModeReaper requeues items stuck in running.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeDispatcher, ServiceModeReaper}
}

// ParseServices parses a comma-delimited list of service names.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		mode := ServiceMode(name)
		switch mode {
		case ServiceModeHTTP, ServiceModeDispatcher, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, dispatcher, reaper)", name)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DispatcherConfig controls the single job item consumer.
type DispatcherConfig struct {
	// PollInterval is the idle wait when no item is queued.
	PollInterval time.Duration `env:"DISPATCHER_POLL_INTERVAL" envDefault:"500ms"`

	// MaxBackoff caps the retry delay after store failures.
	MaxBackoff time.Duration `env:"DISPATCHER_MAX_BACKOFF" envDefault:"30s"`

	// WakeOnEnqueue also listens for enqueue notifications so new work is picked
	// up before the poll interval elapses.
	WakeOnEnqueue bool `env:"DISPATCHER_WAKE_ON_ENQUEUE" envDefault:"true"`

	// DrainTimeout bounds the store writes of the in-flight item after cancellation.
	DrainTimeout time.Duration `env:"DISPATCHER_DRAIN_TIMEOUT" envDefault:"5s"`
}

// Sanitize applies guardrails to dispatcher configuration values.
func (d *DispatcherConfig) Sanitize() {
	if d.PollInterval < 10*time.Millisecond {
		d.PollInterval = 10 * time.Millisecond
	}
	if d.MaxBackoff < d.PollInterval {
		d.MaxBackoff = d.PollInterval
	}
	if d.DrainTimeout <= 0 {
		d.DrainTimeout = 5 * time.Second
	}
}

// ReaperConfig contains stale item reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// StaleAfter is how long an item may stay running before it is requeued.
	StaleAfter time.Duration `env:"ELIG_ITEM_STALE_AFTER" envDefault:"10m"`

	// BatchSize is the maximum number of rows to requeue per statement.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 5*time.Second {
		r.Interval = 5 * time.Second
	}
	if r.StaleAfter < time.Minute {
		r.StaleAfter = time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
