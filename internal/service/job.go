package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/eligibility"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// DefaultBulkMaxItems caps a single bulk submission when no limit is configured.
const DefaultBulkMaxItems = 1000

// BulkJobServiceOptions groups dependencies for BulkJobService.
type BulkJobServiceOptions struct {
	Repo     core.JobRepository // Required: job store
	MaxItems int                // Optional: per-submission item cap, DefaultBulkMaxItems when <= 0
	Logger   *slog.Logger       // Optional: structured logger
}

// BulkJobService accepts bulk submissions and serves their progress and results.
// Items are processed by the dispatcher, never here.
type BulkJobService struct {
	repo     core.JobRepository
	maxItems int
	logger   *slog.Logger
}

// BulkSubmission is one validated bulk request.
type BulkSubmission struct {
	Items      []model.EligibilityRequest
	WebhookURL *string
	Requester  string
}

// JobResults pairs a job with its items in index order.
type JobResults struct {
	Job   *model.Job
	Items []*model.JobItem
}

// NewBulkJobService constructs a new BulkJobService.
func NewBulkJobService(opts BulkJobServiceOptions) (*BulkJobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultBulkMaxItems
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &BulkJobService{
		repo:     opts.Repo,
		maxItems: maxItems,
		logger:   logger.With("component", "bulk_job_service"),
	}, nil
}

// Submit validates every item, then creates the job and enqueues its items in one transaction.
func (s *BulkJobService) Submit(ctx context.Context, sub BulkSubmission) (*model.Job, error) {
	payloads, err := s.encodeItems(sub.Items)
	if err != nil {
		return nil, err
	}

	webhook, err := normalizeWebhookURL(sub.WebhookURL)
	if err != nil {
		return nil, err
	}

	req := &model.CreateJobRequest{
		ID:         uuid.NewString(),
		Total:      len(payloads),
		WebhookURL: webhook,
	}
	if r := strings.TrimSpace(sub.Requester); r != "" {
		req.Requester = &r
	}

	job, err := s.repo.CreateJobWithItems(ctx, req, payloads)
	if err != nil {
		s.logger.ErrorContext(ctx, "enqueue bulk job failed", "job_id", req.ID, "total", req.Total, "error", err)
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk job queued",
		"job_id", job.ID,
		"total", job.Total,
		"webhook", job.HasWebhook(),
	)
	return job, nil
}

// Get returns the job. Ids that are not UUIDs are reported as not found.
func (s *BulkJobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	return s.repo.GetJob(ctx, id)
}

// Results returns the job and every item, including the results recorded so far.
func (s *BulkJobService) Results(ctx context.Context, id string) (*JobResults, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list job items: %w", err)
	}
	return &JobResults{Job: job, Items: items}, nil
}

func (s *BulkJobService) encodeItems(items []model.EligibilityRequest) ([][]byte, error) {
	if len(items) == 0 {
		return nil, apperrors.ValidationField("items", "no items")
	}
	if len(items) > s.maxItems {
		return nil, apperrors.ValidationField("items", fmt.Sprintf("at most %d items per job", s.maxItems))
	}

	payloads := make([][]byte, len(items))
	for i := range items {
		if err := eligibility.ValidateRequest(&items[i]); err != nil {
			field := fmt.Sprintf("items[%d]", i)
			if f := apperrors.GetField(err); f != "" {
				field += "." + f
			}
			return nil, apperrors.ValidationField(field, err.Error())
		}
		raw, err := json.Marshal(items[i])
		if err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i, err)
		}
		payloads[i] = raw
	}
	return payloads, nil
}

// normalizeWebhookURL accepts absolute http(s) URLs whose host is an IP, localhost,
// or a name below a public suffix.
func normalizeWebhookURL(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, apperrors.ValidationField("webhook_url", "webhook_url must be an absolute http(s) URL")
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if net.ParseIP(host) == nil && host != "localhost" {
		if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
			return nil, apperrors.ValidationField("webhook_url", "webhook_url host must be a registrable domain")
		}
	}
	return &trimmed, nil
}
