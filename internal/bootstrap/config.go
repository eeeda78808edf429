package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/eligibility-api/config"
)

// InitLogger installs the process-wide logger: JSON on stdout, and debug level when dev is set.
func InitLogger(dev bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if dev {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads an optional .env file into the environment, then parses and sanitizes AppConfig.
func LoadConfig() (config.AppConfig, error) {
	var cfg config.AppConfig
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env file: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateRuntimeConfig rejects combinations that cannot start: live SAM lookups
// without an API key, and a Redis rate limiter without Redis.
func ValidateRuntimeConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	needsSAM := cfg.IsHTTPServerEnabled() || cfg.IsDispatcherEnabled()
	if needsSAM && !cfg.Eligibility.MockMode && cfg.Eligibility.SAM.APIKey == "" {
		return errors.New("SAM_API_KEY is required unless ELIG_API_MOCK is set")
	}
	if cfg.HTTP.RateLimit.Backend == config.RateLimitBackendRedis && !cfg.Redis.Enabled {
		return errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ENABLED")
	}
	return nil
}

// ValidateServiceConfig requires SERVICES to parse and name at least one service.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	return nil
}

// GetEnabledServices lists enabled service names in ValidServiceModes order.
// An invalid SERVICES value yields an empty list; ValidateServiceConfig reports it.
func GetEnabledServices(cfg *config.AppConfig) []string {
	names := []string{}
	if cfg == nil {
		return names
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return names
	}
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			names = append(names, string(mode))
		}
	}
	return names
}
