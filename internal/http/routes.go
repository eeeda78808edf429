package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/eligibility-api/internal/observability/statsd"
	"github.com/target/eligibility-api/internal/ratelimit"
	"github.com/target/eligibility-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Eligibility   *service.EligibilityService
	Jobs          *service.BulkJobService
	SizeStandards *service.SizeStandardService
	Audit         *service.AuditService // Optional

	// Limiter guards every route. Nil disables rate limiting.
	Limiter ratelimit.Limiter
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
	Metrics        statsd.Sink

	APIKey         string
	AdminKey       string
	AllowedOrigins []string
	MaxBodyBytes   int64
	MockMode       bool
	Started        time.Time
	// HealthChecks are run by GET /v1/health; empty means liveness only.
	HealthChecks map[string]HealthCheck

	Logger *slog.Logger
}

// NewRouter creates the HTTP handler: Recover, Logging, CORS, and RateLimit wrap the route mux.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	started := services.Started
	if started.IsZero() {
		started = time.Now()
	}

	mux := http.NewServeMux()

	health := &HealthHandlers{
		Started:  started,
		MockMode: services.MockMode,
		Checks:   services.HealthChecks,
		Logger:   logger,
	}
	eligibilityHandlers := &EligibilityHandlers{
		Eligibility: services.Eligibility,
		Jobs:        services.Jobs,
		Audit:       services.Audit,
		Logger:      logger,
	}
	jobHandlers := &JobHandlers{Svc: services.Jobs, Logger: logger}
	adminHandlers := &AdminHandlers{
		SizeStandards:  services.SizeStandards,
		MaxUploadBytes: services.MaxBodyBytes,
		Logger:         logger,
	}

	requireKey := RequireKey(HeaderAPIKey, services.APIKey, "invalid api key")
	requireAdmin := RequireKey(HeaderAdminKey, services.AdminKey, "invalid admin key")

	mux.HandleFunc("GET /v1/health", health.Health)
	mux.HandleFunc("HEAD /v1/health", health.Health)
	if services.MetricsHandler != nil {
		mux.Handle("GET /metrics", services.MetricsHandler)
	}

	mux.HandleFunc("GET /v1/naics/{code}/size-standard", eligibilityHandlers.SizeStandard)
	mux.Handle("POST /v1/eligibility/check", requireKey(http.HandlerFunc(eligibilityHandlers.Check)))
	mux.Handle("POST /v1/eligibility/bulk", requireKey(http.HandlerFunc(eligibilityHandlers.Bulk)))

	registerJobRoutes(mux, jobHandlers, requireKey)

	mux.Handle("POST /v1/admin/size-standards/import", requireAdmin(http.HandlerFunc(adminHandlers.ImportSizeStandards)))

	var handler http.Handler = mux
	handler = MaxBody(services.MaxBodyBytes)(handler)
	handler = RateLimit(RateLimitOptions{Limiter: services.Limiter, Metrics: services.Metrics})(handler)
	handler = CORS(services.AllowedOrigins)(handler)
	handler = Logging(logger, services.Metrics)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /v1/jobs/{id}", mw(http.HandlerFunc(h.GetStatus)))
	mux.Handle("GET /v1/jobs/{id}/results", mw(http.HandlerFunc(h.GetResults)))
}
