package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/eligibility-api/config"
	httpx "github.com/target/eligibility-api/internal/http"
	"github.com/target/eligibility-api/internal/ratelimit"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewHTTPServer builds the HTTP server; ServeHTTP runs it.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := httpx.NewRouter(buildRouterServices(cfg, appCfg, logger))

	return newServer(handler, appCfg.HTTP)
}

func buildRouterServices(cfg *HTTPServerConfig, appCfg *config.AppConfig, logger *slog.Logger) httpx.RouterServices {
	services := httpx.RouterServices{
		Eligibility:    cfg.Services.Eligibility,
		Jobs:           cfg.Services.Jobs,
		SizeStandards:  cfg.Services.SizeStandards,
		Audit:          cfg.Services.Audit,
		Limiter:        newLimiter(appCfg.HTTP.RateLimit, cfg.RedisClient, logger),
		Metrics:        cfg.Services.Observability.Sink,
		APIKey:         appCfg.HTTP.APIKey,
		AdminKey:       appCfg.HTTP.AdminKey,
		AllowedOrigins: appCfg.HTTP.CORSAllowedOrigins,
		MaxBodyBytes:   appCfg.HTTP.MaxBodyBytes,
		MockMode:       appCfg.Eligibility.MockMode,
		Started:        cfg.Services.Started,
		HealthChecks:   cfg.Services.HealthChecks,
		Logger:         logger,
	}
	if prom := cfg.Services.Observability.Prometheus; prom != nil {
		services.MetricsHandler = prom.Handler()
	}
	return services
}

// newLimiter picks the limiter backend. The Redis backend falls back to memory when no client is available.
//
//nolint:ireturn // the backend is chosen at runtime.
func newLimiter(cfg config.RateLimitConfig, client redis.UniversalClient, logger *slog.Logger) ratelimit.Limiter {
	limits := ratelimit.Options{Capacity: cfg.PerWindow, Window: cfg.Window}
	if cfg.Backend == config.RateLimitBackendRedis {
		if client != nil {
			return ratelimit.NewRedisWindow(ratelimit.RedisWindowOptions{
				Client: client,
				Limits: limits,
				Logger: logger,
			})
		}
		logger.Warn("redis rate limiter requested without a redis client; using in-memory limiter")
	}
	return ratelimit.NewFixedWindow(limits)
}

func newServer(handler http.Handler, cfg config.HTTPConfig) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeHTTP blocks in ListenAndServe. A server closed by ShutdownHTTPServer returns nil.
func ServeHTTP(server *http.Server, logger *slog.Logger) error {
	logger.Info("starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
