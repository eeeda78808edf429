// Package reaper hosts the stale item reaper as a runnable background service.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/data"
	"github.com/target/eligibility-api/internal/observability/statsd"
	"github.com/target/eligibility-api/internal/service"
)

// Runner returns items stuck in running to the queue, either on an interval (Run)
// or as a single pass (RequeueOnce).
type Runner struct {
	svc    *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions configures a Runner. Repo wins over DB when both are set.
type RunnerOptions struct {
	DB      *sql.DB
	Repo    core.JobMaintenanceRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

func NewRunner(opts RunnerOptions) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repo := opts.Repo
	switch {
	case repo != nil:
	case opts.DB != nil:
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: logger})
	default:
		return nil, errors.New("database connection or repository is required")
	}

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}
	return &Runner{svc: svc, logger: logger.With("component", "reaper_runner")}, nil
}

// Run blocks until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.svc.Run(ctx)
}

// RequeueOnce performs a single pass and returns how many items went back to queued.
func (r *Runner) RequeueOnce(ctx context.Context) (int64, error) {
	return r.svc.RequeueStale(ctx)
}
