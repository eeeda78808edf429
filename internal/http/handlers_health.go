package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const defaultHealthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandlers reports liveness, uptime, dependency status, and whether lookups are mocked.
type HealthHandlers struct {
	Started  time.Time
	MockMode bool
	// Checks are keyed by dependency name ("postgres", "redis").
	Checks map[string]HealthCheck
	// CheckTimeout bounds each check; defaults to defaultHealthCheckTimeout.
	CheckTimeout time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

type healthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	MockMode      bool              `json:"mock_mode"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// Health handles GET and HEAD /v1/health. HEAD is a bare liveness answer;
// GET also runs the dependency checks and answers 503 when any of them fails.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	uptime := int64(now().Sub(h.Started) / time.Second)
	if uptime < 0 {
		uptime = 0
	}

	deps, healthy := h.runChecks(r.Context())
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: uptime,
		MockMode:      h.MockMode,
		Dependencies:  deps,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}

func (h *HealthHandlers) runChecks(ctx context.Context) (map[string]string, bool) {
	if len(h.Checks) == 0 {
		return nil, true
	}
	timeout := h.CheckTimeout
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		check := h.Checks[name]
		if check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			healthy = false
			deps[name] = "error"
			if h.Logger != nil {
				h.Logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			}
			continue
		}
		deps[name] = "ok"
	}
	return deps, healthy
}
