package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/core"
	obserrors "github.com/target/eligibility-api/internal/observability/errors"
	"github.com/target/eligibility-api/internal/observability/metrics"
	"github.com/target/eligibility-api/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.JobMaintenanceRepository // Required: queue maintenance repository
	Config  config.ReaperConfig           // Required: reaper configuration
	Logger  *slog.Logger                  // Optional: structured logger
	Metrics statsd.Sink                   // Optional: metrics sink
}

// ReaperService puts job items that have been running longer than the stale
// threshold back into the queue, so an item orphaned by a crashed dispatcher is retried.
type ReaperService struct {
	repo    core.JobMaintenanceRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobMaintenanceRepository is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"stale_after", opts.Config.StaleAfter,
		"batch_size", opts.Config.BatchSize,
	)

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run requeues stale items every Interval until ctx ends; cancellation is a clean stop.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Replicas start a random fraction (up to 10%) of an interval apart.
	delay := time.Duration(0)
	if spread := s.config.Interval / 10; spread > 0 {
		delay = rand.N(spread)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.config.Interval)
		}
	}
}

func (s *ReaperService) tick(ctx context.Context) {
	if _, err := s.RequeueStale(ctx); err != nil {
		if isContextCancellation(err) {
			s.logger.Debug("requeue cancelled by context", "error", err)
			return
		}
		s.logger.ErrorContext(ctx, "requeue stale items failed", "error", err)
	}
}

// RequeueStale runs batches until one comes back empty and returns the total requeued.
func (s *ReaperService) RequeueStale(ctx context.Context) (int64, error) {
	start := time.Now()
	params := core.RequeueStaleItemsParams{OlderThan: s.config.StaleAfter, BatchSize: s.config.BatchSize}

	var (
		total int64
		err   error
	)
	for {
		var n int64
		if n, err = s.repo.RequeueStaleItems(ctx, params); err != nil {
			break
		}
		total += n
		// A short batch means the backlog is drained.
		if n == 0 || n < int64(params.BatchSize) {
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}
	}

	s.emitMetrics(total, time.Since(start), err)

	if total > 0 {
		s.logger.WarnContext(ctx, "requeued stale job items",
			"count", total,
			"stale_after", s.config.StaleAfter,
		)
	}
	return total, err
}

func (s *ReaperService) emitMetrics(count int64, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case count == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil && !isContextCancellation(err) {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.requeue", 1, tags)
	s.metrics.Timing("reaper.requeue_duration", elapsed, metrics.CloneTags(tags))
	if count > 0 {
		s.metrics.Count("reaper.items_requeued", count, nil)
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
