package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/eligibility-api/internal/adapters/sam"
	"github.com/target/eligibility-api/internal/mocks"
	"github.com/target/eligibility-api/internal/ratelimit"
	"github.com/target/eligibility-api/internal/service"
)

type routerFixture struct {
	handler http.Handler
	jobs    *mocks.MockJobRepository
	sizes   *mocks.MockSizeStandardRepository
	audits  *mocks.MockAuditRepository
}

type routerConfig struct {
	apiKey   string
	adminKey string
	limiter  ratelimit.Limiter
	maxItems int
	checks   map[string]HealthCheck
}

// newRouterFixture wires real services over gomock repositories and mock-mode SAM lookups.
func newRouterFixture(t *testing.T, cfg routerConfig) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &routerFixture{
		jobs:   mocks.NewMockJobRepository(ctrl),
		sizes:  mocks.NewMockSizeStandardRepository(ctrl),
		audits: mocks.NewMockAuditRepository(ctrl),
	}

	fetched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lookups, err := sam.NewClient(sam.Config{Mock: true, Now: func() time.Time { return fetched }})
	require.NoError(t, err)

	elig, err := service.NewEligibilityService(service.EligibilityServiceOptions{
		Lookups:       service.EligibilityLookups{Exclusions: lookups, Registration: lookups},
		SizeStandards: f.sizes,
	})
	require.NoError(t, err)

	jobs, err := service.NewBulkJobService(service.BulkJobServiceOptions{Repo: f.jobs, MaxItems: cfg.maxItems})
	require.NoError(t, err)

	sizes, err := service.NewSizeStandardService(service.SizeStandardServiceOptions{Repo: f.sizes})
	require.NoError(t, err)

	f.handler = NewRouter(RouterServices{
		Eligibility:    elig,
		Jobs:           jobs,
		SizeStandards:  sizes,
		Audit:          service.NewAuditService(f.audits, nil),
		Limiter:        cfg.limiter,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		APIKey:         cfg.apiKey,
		AdminKey:       cfg.adminKey,
		MaxBodyBytes:   1 << 20,
		MockMode:       true,
		Started:        time.Now().Add(-90 * time.Second),
		HealthChecks:   cfg.checks,
	})
	return f
}

func (f *routerFixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dst))
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	decodeBody(t, w, &body)
	return body.Detail
}
