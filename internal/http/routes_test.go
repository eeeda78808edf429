package httpx

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
	"github.com/target/eligibility-api/internal/ratelimit"
	"github.com/target/eligibility-api/internal/testutil"
)

const testJobID = "550e8400-e29b-41d4-a716-446655440000"

func TestHealth(t *testing.T) {
	f := newRouterFixture(t, routerConfig{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body.Status)
	assert.GreaterOrEqual(t, body.UptimeSeconds, int64(90))
	assert.True(t, body.MockMode)

	head := f.do(httptest.NewRequest(http.MethodHead, "/v1/health", nil))
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Zero(t, head.Body.Len())
}

func TestHealthDependencies(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
		wantDeps   map[string]string
	}{
		{
			name: "all dependencies reachable",
			checks: map[string]HealthCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantDeps:   map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name: "redis down",
			checks: map[string]HealthCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
			wantDeps:   map[string]string{"postgres": "ok", "redis": "error"},
		},
		{
			name: "check bounded by deadline",
			checks: map[string]HealthCheck{
				"postgres": func(ctx context.Context) error {
					_, ok := ctx.Deadline()
					if !ok {
						return errors.New("no deadline")
					}
					return nil
				},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantDeps:   map[string]string{"postgres": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, routerConfig{checks: tt.checks})

			w := f.do(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
			require.Equal(t, tt.wantStatus, w.Code)

			var body healthResponse
			decodeBody(t, w, &body)
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Equal(t, tt.wantDeps, body.Dependencies)

			head := f.do(httptest.NewRequest(http.MethodHead, "/v1/health", nil))
			assert.Equal(t, http.StatusOK, head.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t, routerConfig{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestSizeStandard(t *testing.T) {
	title := "Custom Title"
	fy := 2026

	tests := []struct {
		name       string
		code       string
		setup      func(f *routerFixture)
		wantStatus int
		wantDetail string
		want       *sizeStandardResponse
	}{
		{
			name:       "invalid code",
			code:       "54151x",
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid NAICS",
		},
		{
			name: "absent from table and fallback",
			code: "111111",
			setup: func(f *routerFixture) {
				f.sizes.EXPECT().Get(gomock.Any(), "111111").Return(nil, apperrors.NotFound("size standard not found"))
			},
			wantStatus: http.StatusNotFound,
			wantDetail: "NAICS not found",
		},
		{
			name: "table row",
			code: "541511",
			setup: func(f *routerFixture) {
				f.sizes.EXPECT().Get(gomock.Any(), "541511").Return(&model.SizeStandard{
					NAICS: "541511", Title: &title, Basis: model.SizeBasisReceipts,
					Threshold: 40000000, Unit: "USD", EffectiveFY: &fy,
				}, nil)
			},
			wantStatus: http.StatusOK,
			want: &sizeStandardResponse{
				NAICS: "541511", Title: title, Basis: model.SizeBasisReceipts,
				Threshold: 40000000, Unit: "USD", EffectiveFY: &fy,
			},
		},
		{
			name: "fallback row keeps the table title",
			code: "336611",
			setup: func(f *routerFixture) {
				f.sizes.EXPECT().Get(gomock.Any(), "336611").Return(nil, apperrors.NotFound("size standard not found"))
			},
			wantStatus: http.StatusOK,
			want: &sizeStandardResponse{
				NAICS: "336611", Title: "Ship Building and Repairing", Basis: model.SizeBasisEmployees,
				Threshold: 1300, Unit: "employees", EffectiveFY: testutil.IntPtr(2025),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, routerConfig{})
			if tt.setup != nil {
				tt.setup(f)
			}

			w := f.do(httptest.NewRequest(http.MethodGet, "/v1/naics/"+tt.code+"/size-standard", nil))
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detailOf(t, w))
				return
			}
			var got sizeStandardResponse
			decodeBody(t, w, &got)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func TestCheck_RequiresAPIKey(t *testing.T) {
	f := newRouterFixture(t, routerConfig{apiKey: "secret"})

	body := testutil.NewEligibilityRequest().JSON()
	r := httptest.NewRequest(http.MethodPost, "/v1/eligibility/check", bytes.NewReader(body))
	r.Header.Set(HeaderAPIKey, "wrong")

	w := f.do(r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid api key", detailOf(t, w))
}

func TestCheck_ReturnsVerdictAndAudits(t *testing.T) {
	f := newRouterFixture(t, routerConfig{apiKey: "secret"})
	f.sizes.EXPECT().Get(gomock.Any(), "541511").Return(nil, apperrors.NotFound("size standard not found"))

	var audited *model.AuditEntry
	f.audits.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.AuditEntry) error {
		audited = e
		return nil
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/eligibility/check", bytes.NewReader(testutil.NewEligibilityRequest().JSON()))
	r.Header.Set(HeaderAPIKey, "secret")

	w := f.do(r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verdict model.EligibilityVerdict
	decodeBody(t, w, &verdict)
	assert.True(t, verdict.Eligible)
	assert.Equal(t, "No exclusions; active SAM; size evidence required", verdict.Summary)
	require.NotNil(t, verdict.SAM.UEI)
	assert.Equal(t, "ABCDEF123456", *verdict.SAM.UEI)
	// Mock lookups fetch nothing, so the verdict carries no evidence.
	require.NotNil(t, verdict.Evidence)
	assert.Empty(t, verdict.Evidence)

	require.NotNil(t, audited)
	assert.Equal(t, RouteEligibilityCheck, audited.Route)
	assert.Contains(t, string(audited.Payload), `"naics":"541511"`)
	assert.Contains(t, string(audited.Response), `"eligible":true`)
}

func TestCheck_AuditFailureDoesNotAffectResponse(t *testing.T) {
	f := newRouterFixture(t, routerConfig{})
	f.sizes.EXPECT().Get(gomock.Any(), "541511").Return(nil, apperrors.NotFound("size standard not found"))
	f.audits.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("audits table missing"))

	r := httptest.NewRequest(http.MethodPost, "/v1/eligibility/check", bytes.NewReader(testutil.NewEligibilityRequest().JSON()))
	w := f.do(r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheck_BadInput(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDetail string
	}{
		{name: "malformed json", body: `{"naics":`, wantDetail: "invalid JSON body"},
		{name: "invalid naics", body: `{"identifier":{"uei":"U1"},"naics":"123"}`, wantDetail: "invalid NAICS"},
		{name: "missing identifier", body: `{"identifier":{},"naics":"541511"}`, wantDetail: "identifier requires"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, routerConfig{})
			w := f.do(httptest.NewRequest(http.MethodPost, "/v1/eligibility/check", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, detailOf(t, w), tt.wantDetail)
		})
	}
}

func TestBulk_QueuesJob(t *testing.T) {
	f := newRouterFixture(t, routerConfig{apiKey: "secret"})

	f.jobs.EXPECT().CreateJobWithItems(gomock.Any(), gomock.Any(), gomock.Len(2)).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest, _ [][]byte) (*model.Job, error) {
			require.NotNil(t, req.Requester)
			assert.Equal(t, "secret", *req.Requester)
			require.NotNil(t, req.WebhookURL)
			assert.Equal(t, "https://hooks.example.com/elig", *req.WebhookURL)
			return &model.Job{ID: req.ID, Status: model.JobStatusQueued, Total: req.Total, WebhookURL: req.WebhookURL}, nil
		})

	body := `{"items":[
		{"identifier":{"uei":"AAA111"},"naics":"541511"},
		{"identifier":{"cage":"1ABC2"},"naics":"336611","size_basis":{"kind":"employees","value":200}}
	],"webhook_url":"https://hooks.example.com/elig"}`
	r := httptest.NewRequest(http.MethodPost, "/v1/eligibility/bulk", strings.NewReader(body))
	r.Header.Set(HeaderAPIKey, "secret")

	w := f.do(r)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var got bulkResponse
	decodeBody(t, w, &got)
	assert.NotEmpty(t, got.JobID)
	assert.Equal(t, model.JobStatusQueued, got.Status)
	assert.Equal(t, 2, got.Total)
}

func TestBulk_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		maxItems   int
		wantDetail string
	}{
		{name: "no items", body: `{"items":[]}`, wantDetail: "no items"},
		{name: "missing items", body: `{}`, wantDetail: "no items"},
		{
			name:       "over the cap",
			body:       `{"items":[{"identifier":{"uei":"A"},"naics":"541511"},{"identifier":{"uei":"B"},"naics":"541511"}]}`,
			maxItems:   1,
			wantDetail: "at most 1 items per job",
		},
		{
			name:       "invalid item",
			body:       `{"items":[{"identifier":{"uei":"A"},"naics":"5415"}]}`,
			wantDetail: "invalid NAICS",
		},
		{
			name:       "webhook on a bare public suffix",
			body:       `{"items":[{"identifier":{"uei":"A"},"naics":"541511"}],"webhook_url":"https://co.uk/hook"}`,
			wantDetail: "registrable domain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, routerConfig{maxItems: tt.maxItems})
			w := f.do(httptest.NewRequest(http.MethodPost, "/v1/eligibility/bulk", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, detailOf(t, w), tt.wantDetail)
		})
	}
}

func TestJobStatus(t *testing.T) {
	f := newRouterFixture(t, routerConfig{})
	created := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	f.jobs.EXPECT().GetJob(gomock.Any(), testJobID).
		Return(&model.Job{ID: testJobID, Status: model.JobStatusRunning, Total: 3, Done: 1, CreatedAt: created}, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/jobs/"+testJobID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id": "550e8400-e29b-41d4-a716-446655440000",
		"status": "running",
		"total": 3,
		"done": 1,
		"webhook_url": null,
		"created_ts": "2025-05-01T08:30:00Z"
	}`, w.Body.String())
}

func TestJobStatus_NotFound(t *testing.T) {
	f := newRouterFixture(t, routerConfig{})
	f.jobs.EXPECT().GetJob(gomock.Any(), testJobID).Return(nil, apperrors.NotFoundf("job %s not found", testJobID))

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/jobs/"+testJobID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Ids that are not UUIDs never reach the store.
	w = f.do(httptest.NewRequest(http.MethodGet, "/v1/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobResults(t *testing.T) {
	f := newRouterFixture(t, routerConfig{})
	f.jobs.EXPECT().GetJob(gomock.Any(), testJobID).
		Return(&model.Job{ID: testJobID, Status: model.JobStatusRunning, Total: 2, Done: 1}, nil)
	f.jobs.EXPECT().ListItems(gomock.Any(), testJobID).Return([]*model.JobItem{
		{Index: 0, Status: model.ItemStatusDone, Payload: []byte(`{"naics":"541511"}`), Result: []byte(`{"error":"exclusions unavailable"}`)},
		{Index: 1, Status: model.ItemStatusQueued, Payload: []byte(`{"naics":"541512"}`)},
	}, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/jobs/"+testJobID+"/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"job": {"id": "550e8400-e29b-41d4-a716-446655440000", "status": "running", "total": 2, "done": 1},
		"results": [
			{"index": 0, "status": "done", "payload": {"naics":"541511"}, "result": {"error":"exclusions unavailable"}},
			{"index": 1, "status": "queued", "payload": {"naics":"541512"}, "result": null}
		]
	}`, w.Body.String())
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

const sizeCSV = "naics,title,basis,threshold,unit,effective_fy\n" +
	"541511,Custom Computer Programming Services,receipts,34500000,USD,2025\n" +
	"336611,Ship Building and Repairing,employees,1300,employees,2025\n"

func TestImportSizeStandards(t *testing.T) {
	t.Run("requires admin key", func(t *testing.T) {
		f := newRouterFixture(t, routerConfig{adminKey: "root"})
		body, ct := multipartCSV(t, "sizes.csv", sizeCSV)
		r := httptest.NewRequest(http.MethodPost, "/v1/admin/size-standards/import", body)
		r.Header.Set("Content-Type", ct)

		w := f.do(r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid admin key", detailOf(t, w))
	})

	t.Run("multipart upload", func(t *testing.T) {
		f := newRouterFixture(t, routerConfig{adminKey: "root"})
		f.sizes.EXPECT().UpsertBatch(gomock.Any(), gomock.Len(2)).Return(2, nil)

		body, ct := multipartCSV(t, "sizes.csv", sizeCSV)
		r := httptest.NewRequest(http.MethodPost, "/v1/admin/size-standards/import", body)
		r.Header.Set("Content-Type", ct)
		r.Header.Set(HeaderAdminKey, "root")

		w := f.do(r)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"imported":2}`, w.Body.String())
	})

	t.Run("text/csv body", func(t *testing.T) {
		f := newRouterFixture(t, routerConfig{})
		f.sizes.EXPECT().UpsertBatch(gomock.Any(), gomock.Len(2)).Return(2, nil)

		r := httptest.NewRequest(http.MethodPost, "/v1/admin/size-standards/import", strings.NewReader(sizeCSV))
		r.Header.Set("Content-Type", "text/csv; charset=utf-8")

		w := f.do(r)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"imported":2}`, w.Body.String())
	})

	t.Run("rejects non csv upload", func(t *testing.T) {
		f := newRouterFixture(t, routerConfig{})
		body, ct := multipartCSV(t, "sizes.xlsx", sizeCSV)
		r := httptest.NewRequest(http.MethodPost, "/v1/admin/size-standards/import", body)
		r.Header.Set("Content-Type", ct)

		w := f.do(r)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, csvUploadHint, detailOf(t, w))
	})

	t.Run("bad row", func(t *testing.T) {
		f := newRouterFixture(t, routerConfig{})
		r := httptest.NewRequest(http.MethodPost, "/v1/admin/size-standards/import",
			strings.NewReader("naics,basis,threshold,unit\n541511,revenue,10,USD\n"))
		r.Header.Set("Content-Type", "text/csv")

		w := f.do(r)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, detailOf(t, w), "line 2")
	})
}

func TestRateLimit_DeniesAfterCapacity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := ratelimit.NewFixedWindow(ratelimit.Options{
		Capacity: 2,
		Window:   time.Minute,
		Clock:    func() time.Time { return now },
	})
	f := newRouterFixture(t, routerConfig{limiter: limiter})

	get := func(key string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		if key != "" {
			r.Header.Set(HeaderAPIKey, key)
		}
		return f.do(r)
	}

	first := get("k1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "1", first.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "1700000060", first.Header().Get(HeaderRateLimitReset))

	second := get("k1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get(HeaderRateLimitRemaining))

	third := get("k1")
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "rate limit exceeded", detailOf(t, third))
	assert.Equal(t, "0", third.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "1700000060", third.Header().Get(HeaderRateLimitReset))

	// Unkeyed callers are bucketed by remote host.
	assert.Equal(t, http.StatusOK, get("").Code)
}
