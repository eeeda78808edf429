package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/service"
)

// JobHandlers provides HTTP handlers for bulk job progress and results.
type JobHandlers struct {
	Svc    *service.BulkJobService
	Logger *slog.Logger
}

type jobStatusResponse struct {
	ID         string          `json:"id"`
	Status     model.JobStatus `json:"status"`
	Total      int             `json:"total"`
	Done       int             `json:"done"`
	WebhookURL *string         `json:"webhook_url"`
	CreatedTS  time.Time       `json:"created_ts"`
}

type jobSummary struct {
	ID     string          `json:"id"`
	Status model.JobStatus `json:"status"`
	Total  int             `json:"total"`
	Done   int             `json:"done"`
}

type itemResult struct {
	Index   int              `json:"index"`
	Status  model.ItemStatus `json:"status"`
	Payload json.RawMessage  `json:"payload"`
	Result  json.RawMessage  `json:"result"`
}

type jobResultsResponse struct {
	Job     jobSummary   `json:"job"`
	Results []itemResult `json:"results"`
}

// GetStatus handles GET /v1/jobs/{id}.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, jobStatusResponse{
		ID:         job.ID,
		Status:     job.Status,
		Total:      job.Total,
		Done:       job.Done,
		WebhookURL: job.WebhookURL,
		CreatedTS:  job.CreatedAt,
	})
}

// GetResults handles GET /v1/jobs/{id}/results. Items are listed in index order;
// an item without a result yet reports "result": null.
func (h *JobHandlers) GetResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	out := jobResultsResponse{
		Job: jobSummary{
			ID:     res.Job.ID,
			Status: res.Job.Status,
			Total:  res.Job.Total,
			Done:   res.Job.Done,
		},
		Results: make([]itemResult, 0, len(res.Items)),
	}
	for _, it := range res.Items {
		result := it.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		out.Results = append(out.Results, itemResult{
			Index:   it.Index,
			Status:  it.Status,
			Payload: it.Payload,
			Result:  result,
		})
	}

	WriteJSON(w, http.StatusOK, out)
}
