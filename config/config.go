// Package config loads the service configuration from environment variables.
package config

// AppConfig is the root configuration. Each domain lives in its own file:
//   - database.go: Postgres and Redis connections
//   - http.go: listener, API keys, CORS, and rate limiting
//   - eligibility.go: upstream lookups, bulk jobs, and the webhook
//   - services.go: service modes, dispatcher, and reaper
//   - observability.go: metrics
//
// Values are parsed by github.com/caarlos0/env. A .env file, when present, is loaded first.
type AppConfig struct {
	// IsDev switches the logger to debug level.
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	Services string `env:"SERVICES" envDefault:"http,dispatcher"`

	Eligibility EligibilityConfig
	Dispatcher  DispatcherConfig
	Reaper      ReaperConfig

	Observability ObservabilityConfig
}

// Sanitize clamps values loaded from env into their supported ranges.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Eligibility.Sanitize()
	c.Dispatcher.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsDispatcherEnabled returns true if the job dispatcher is enabled.
func (c *AppConfig) IsDispatcherEnabled() bool { return c.serviceEnabled(ServiceModeDispatcher) }

// IsReaperEnabled returns true if the stale-item reaper is enabled.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }
