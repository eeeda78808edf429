package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/adapters/dispatcher"
	"github.com/target/eligibility-api/internal/adapters/reaper"
	"github.com/target/eligibility-api/internal/data"
	"github.com/target/eligibility-api/internal/domain/job"
	"github.com/target/eligibility-api/internal/observability/statsd"
)

// DispatcherConfig contains configuration for the job dispatcher.
type DispatcherConfig struct {
	Services ServiceContainer
	Config   config.DispatcherConfig
	Logger   *slog.Logger
}

// RunDispatcher consumes queued job items until ctx is cancelled.
func RunDispatcher(ctx context.Context, cfg DispatcherConfig) error {
	if cfg.Services.JobRepo == nil || cfg.Services.Eligibility == nil {
		return errors.New("dispatcher requires the job repository and the eligibility service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := dispatcher.Options{
		Repo:      cfg.Services.JobRepo,
		Evaluator: cfg.Services.Eligibility,
		Notifier:  cfg.Services.Completion,
		Config:    cfg.Config,
		Logger:    logger,
		Metrics:   cfg.Services.Observability.Sink,
	}

	if cfg.Config.WakeOnEnqueue {
		wake, err := job.NewNotifier(job.NotifierOptions{Waiter: cfg.Services.JobRepo})
		if err != nil {
			return fmt.Errorf("create enqueue notifier: %w", err)
		}
		defer wake.StopAll()
		opts.Wake = wake
	}

	d, err := dispatcher.New(opts)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	return d.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Repo    *data.JobRepo // Optional: reused when set
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// NewReaperRunner builds the reaper runner shared by the service loop and the admin CLI.
func NewReaperRunner(cfg ReaperConfig) (*reaper.Runner, error) {
	opts := reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	}
	if cfg.Repo != nil {
		opts.Repo = cfg.Repo
	}

	runner, err := reaper.NewRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("create reaper runner: %w", err)
	}
	return runner, nil
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := NewReaperRunner(cfg)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
