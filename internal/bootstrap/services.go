package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/adapters/sam"
	"github.com/target/eligibility-api/internal/adapters/webhook"
	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/data"
	httpx "github.com/target/eligibility-api/internal/http"
	"github.com/target/eligibility-api/internal/observability/metrics"
	"github.com/target/eligibility-api/internal/observability/statsd"
	"github.com/target/eligibility-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Eligibility   *service.EligibilityService
	Jobs          *service.BulkJobService
	SizeStandards *service.SizeStandardService
	Audit         *service.AuditService
	// JobRepo is shared by the dispatcher, the reaper, and the enqueue wake-up listener.
	JobRepo *data.JobRepo
	// Completion delivers job completion webhooks.
	Completion core.CompletionNotifier
	// HealthChecks back GET /v1/health: "postgres" always, "redis" when a client is configured.
	HealthChecks  map[string]httpx.HealthCheck
	Started       time.Time
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Sink fans out to StatsD and Prometheus; nil when both are disabled.
	Sink          statsd.Sink
	Statsd        *statsd.Client
	Prometheus    *metrics.PrometheusSink
	MetricsConfig config.ObservabilityMetricsConfig
}

// Close releases the StatsD socket.
func (o ObservabilityContainer) Close() error {
	if o.Statsd == nil {
		return nil
	}
	return o.Statsd.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	JobRepo          *data.JobRepo
	SizeStandardRepo *data.SizeStandardRepo
	AuditRepo        *data.AuditRepo
	// CacheRepo is nil when Redis is disabled.
	CacheRepo *data.RedisCacheRepo
}

// buildObservability configures the metrics sinks.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.Statsd = client
		}
	}

	if cfg.Metrics.PrometheusEnabled {
		out.Prometheus = metrics.NewPrometheusSink(cfg.Metrics.Prefix)
	}

	var sinks []statsd.Sink
	if out.Statsd != nil {
		sinks = append(sinks, out.Statsd)
	}
	if out.Prometheus != nil {
		sinks = append(sinks, out.Prometheus)
	}
	out.Sink = statsd.NewFanout(sinks...)
	return out
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, client redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repos := &serviceRepositories{
		JobRepo:          data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		SizeStandardRepo: data.NewSizeStandardRepo(db),
		AuditRepo:        data.NewAuditRepo(db, data.SystemClock{}),
	}
	if client != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(client, "eligibility:lookup:")
	}
	return repos
}

// buildHealthChecks maps dependency names to reachability checks.
func buildHealthChecks(db *sql.DB, cache core.CacheRepository) map[string]httpx.HealthCheck {
	checks := map[string]httpx.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if cache != nil {
		checks["redis"] = cache.Health
	}
	return checks
}

// buildLookups returns the SAM client, wrapped in the read-through cache when Redis is available.
func buildLookups(cfg *config.AppConfig, repos *serviceRepositories, logger *slog.Logger) (service.EligibilityLookups, error) {
	client, err := sam.NewClient(sam.Config{
		EntityURL:     cfg.Eligibility.SAM.EntityURL,
		ExclusionsURL: cfg.Eligibility.SAM.ExclusionsURL,
		APIKey:        cfg.Eligibility.SAM.APIKey,
		Timeout:       cfg.Eligibility.SAM.Timeout,
		Mock:          cfg.Eligibility.MockMode,
	})
	if err != nil {
		return service.EligibilityLookups{}, fmt.Errorf("create sam client: %w", err)
	}

	lookups := service.EligibilityLookups{Exclusions: client, Registration: client}
	if repos.CacheRepo == nil || cfg.Eligibility.SAM.CacheTTL <= 0 || cfg.Eligibility.MockMode {
		return lookups, nil
	}

	cached := core.NewCachedLookups(core.CachedLookupsOptions{
		Cache:        repos.CacheRepo,
		Exclusions:   client,
		Registration: client,
		TTL:          cfg.Eligibility.SAM.CacheTTL,
		Logger:       logger,
	})
	logger.Info("sam lookup cache enabled", "ttl", cfg.Eligibility.SAM.CacheTTL)
	return service.EligibilityLookups{Exclusions: cached, Registration: cached}, nil
}

// NewServices wires repositories, upstream lookups, and domain services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)

	lookups, err := buildLookups(cfg, repos, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	// Keep a nil *RedisCacheRepo out of the interface.
	var cache core.CacheRepository
	if repos.CacheRepo != nil {
		cache = repos.CacheRepo
	}

	eligibilitySvc, err := service.NewEligibilityService(service.EligibilityServiceOptions{
		Lookups:       lookups,
		SizeStandards: repos.SizeStandardRepo,
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create eligibility service: %w", err)
	}

	jobs, err := service.NewBulkJobService(service.BulkJobServiceOptions{
		Repo:     repos.JobRepo,
		MaxItems: cfg.Eligibility.BulkMaxItems,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create bulk job service: %w", err)
	}

	sizes, err := service.NewSizeStandardService(service.SizeStandardServiceOptions{
		Repo:   repos.SizeStandardRepo,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create size standard service: %w", err)
	}

	return ServiceContainer{
		Eligibility:   eligibilitySvc,
		Jobs:          jobs,
		SizeStandards: sizes,
		Audit:         service.NewAuditService(repos.AuditRepo, logger),
		JobRepo:       repos.JobRepo,
		Completion: webhook.NewNotifier(webhook.Options{
			SigningKey: cfg.Eligibility.Webhook.SigningKey,
			Timeout:    cfg.Eligibility.Webhook.Timeout,
			Logger:     logger,
			Metrics:    observability.Sink,
		}),
		HealthChecks:  buildHealthChecks(deps.DB, cache),
		Started:       time.Now(),
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains dependencies for running the enabled services.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func newDispatcherBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeDispatcher,
		name: "dispatcher",
		start: func(ctx context.Context) error {
			var dispatcherCfg config.DispatcherConfig
			if deps.cfg.Config != nil {
				dispatcherCfg = deps.cfg.Config.Dispatcher
			}
			return RunDispatcher(ctx, DispatcherConfig{
				Services: deps.cfg.Services,
				Config:   dispatcherCfg,
				Logger:   deps.logger,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperConfig{
				DB:      deps.cfg.DB,
				Repo:    deps.cfg.Services.JobRepo,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.Sink,
			})
		},
	}
}

// enabledBackgroundServices returns the descriptors whose mode is enabled.
func enabledBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil || deps.cfg == nil {
		return nil
	}
	all := []backgroundService{
		newDispatcherBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
	out := make([]backgroundService, 0, len(all))
	for _, svc := range all {
		if deps.enabledServices[svc.mode] {
			out = append(out, svc)
		}
	}
	return out
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// It blocks until SIGINT/SIGTERM or until one service fails, then stops the rest.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServices(signalCtx, &serviceStartupDeps{
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
	})
}

// runServices runs every enabled service in one errgroup. The first failure cancels the others.
func runServices(ctx context.Context, deps *serviceStartupDeps) error {
	g, gctx := errgroup.WithContext(ctx)

	var server *http.Server
	if deps.enabledServices[config.ServiceModeHTTP] {
		server = NewHTTPServer(&HTTPServerConfig{
			Config:      deps.cfg.Config,
			Services:    deps.cfg.Services,
			RedisClient: deps.cfg.RedisClient,
			Logger:      deps.logger,
		})
		g.Go(func() error { return ServeHTTP(server, deps.logger) })
	}

	for _, svc := range enabledBackgroundServices(deps) {
		deps.logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
		g.Go(func() error {
			if err := svc.start(gctx); err != nil {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			deps.logger.Info(svc.name + " stopped")
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			deps.logger.Info("shutting down services...")
		}
		var timeout time.Duration
		if deps.cfg.Config != nil {
			timeout = deps.cfg.Config.HTTP.ShutdownTimeout
		}
		return ShutdownHTTPServer(ShutdownConfig{
			Context: context.WithoutCancel(gctx),
			Server:  server,
			Timeout: timeout,
			Logger:  deps.logger,
		})
	})

	return waitForServices(gctx, g, deps.logger)
}

// waitForServices waits for the group. Once shutdown has begun it gives up after shutdownWaitTimeout.
func waitForServices(ctx context.Context, g *errgroup.Group, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return reportServiceError(err, logger)
	case <-ctx.Done():
	}

	select {
	case err := <-done:
		return reportServiceError(err, logger)
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for services to stop")
		return errors.New("timed out waiting for services to stop")
	}
}

func reportServiceError(err error, logger *slog.Logger) error {
	if err != nil {
		logger.Error("service error", "error", err)
	}
	return err
}
