package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/eligibility-api/internal/domain/eligibility"
	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/service"
)

// Audited route names.
const (
	RouteEligibilityCheck = "/v1/eligibility/check"
)

// EligibilityHandlers serves synchronous checks, bulk submissions, and size-standard lookups.
type EligibilityHandlers struct {
	Eligibility *service.EligibilityService
	Jobs        *service.BulkJobService
	Audit       *service.AuditService // Optional
	Logger      *slog.Logger
}

type sizeStandardResponse struct {
	NAICS       string              `json:"naics"`
	Title       string              `json:"title"`
	Basis       model.SizeBasisKind `json:"basis"`
	Threshold   float64             `json:"threshold"`
	Unit        string              `json:"unit"`
	EffectiveFY *int                `json:"effective_fy"`
}

// SizeStandard handles GET /v1/naics/{code}/size-standard.
func (h *EligibilityHandlers) SizeStandard(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	std, err := h.Eligibility.SizeStandard(r.Context(), code)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	title := eligibility.TitleFor(code)
	if std.Title != nil && *std.Title != "" {
		title = *std.Title
	}

	WriteJSON(w, http.StatusOK, sizeStandardResponse{
		NAICS:       code,
		Title:       title,
		Basis:       std.Basis,
		Threshold:   std.Threshold,
		Unit:        std.Unit,
		EffectiveFY: std.EffectiveFY,
	})
}

// Check handles POST /v1/eligibility/check. The audit write never affects the response.
func (h *EligibilityHandlers) Check(w http.ResponseWriter, r *http.Request) {
	var req model.EligibilityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	verdict, err := h.Eligibility.Evaluate(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	h.Audit.Record(r.Context(), RouteEligibilityCheck, &req, verdict)
	WriteJSON(w, http.StatusOK, verdict)
}

type bulkRequest struct {
	Items      []model.EligibilityRequest `json:"items"`
	WebhookURL *string                    `json:"webhook_url"`
}

type bulkResponse struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
	Total  int             `json:"total"`
}

// Bulk handles POST /v1/eligibility/bulk. Items are queued for the dispatcher.
func (h *EligibilityHandlers) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Jobs.Submit(r.Context(), service.BulkSubmission{
		Items:      req.Items,
		WebhookURL: req.WebhookURL,
		Requester:  r.Header.Get(HeaderAPIKey),
	})
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, bulkResponse{
		JobID:  job.ID,
		Status: job.Status,
		Total:  job.Total,
	})
}
