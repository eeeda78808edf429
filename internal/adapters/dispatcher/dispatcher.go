// Package dispatcher drains the bulk job queue: it claims items one at a time, evaluates them,
// records their results, and fires the completion webhook when a job finishes.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/job"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
	"github.com/target/eligibility-api/internal/observability/metrics"
	"github.com/target/eligibility-api/internal/observability/statsd"
)

// Options configures the dispatcher.
type Options struct {
	Repo      core.JobRepository      // Required
	Evaluator core.Evaluator          // Required
	Notifier  core.CompletionNotifier // Optional: completion webhook
	Wake      job.Notifier            // Optional: enqueue signal; polling alone is used when nil
	Config    config.DispatcherConfig
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Dispatcher is the single consumer of the job queue.
type Dispatcher struct {
	repo      core.JobRepository
	evaluator core.Evaluator
	notifier  core.CompletionNotifier
	wake      job.Notifier
	cfg       config.DispatcherConfig
	logger    *slog.Logger
	metrics   statsd.Sink
}

// New validates options and constructs a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Evaluator == nil {
		return nil, errors.New("evaluator is required")
	}

	cfg := opts.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		cfg.MaxBackoff = cfg.PollInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		repo:      opts.Repo,
		evaluator: opts.Evaluator,
		notifier:  opts.Notifier,
		wake:      opts.Wake,
		cfg:       cfg,
		logger:    logger.With("component", "dispatcher"),
		metrics:   opts.Metrics,
	}, nil
}

// Run processes items until ctx is cancelled. Store failures are retried with backoff and never end
// the loop. Returns nil on graceful shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "starting dispatcher",
		"poll_interval", d.cfg.PollInterval,
		"max_backoff", d.cfg.MaxBackoff,
		"wake_on_enqueue", d.wake != nil,
	)

	var wake <-chan struct{}
	if d.wake != nil {
		unsub, ch := d.wake.Subscribe()
		defer unsub()
		wake = ch
	}

	failures := 0
	for ctx.Err() == nil {
		item, err := d.repo.ClaimNextQueuedItem(ctx)
		switch {
		case err == nil:
			failures = 0
			d.processItem(ctx, item)
		case errors.Is(err, model.ErrNoItemsAvailable):
			failures = 0
			if closed := d.idle(ctx, d.cfg.PollInterval, wake); closed {
				wake = nil
			}
		case ctx.Err() != nil:
			// shutting down; the loop condition ends the run
		default:
			failures++
			delay := d.backoff(failures)
			d.logger.ErrorContext(ctx, "claim next item failed", "error", err, "attempt", failures, "retry_in", delay)
			metrics.EmitItemLifecycle(d.metrics, metrics.ItemMetric{
				Transition: metrics.TransitionClaimed,
				Result:     metrics.ResultError,
				Err:        err,
			})
			d.idle(ctx, delay, nil)
		}
	}

	d.logger.InfoContext(ctx, "dispatcher stopping", "reason", ctx.Err())
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (d *Dispatcher) processItem(ctx context.Context, item *model.JobItem) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitItemLifecycle(d.metrics, metrics.ItemMetric{
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	emit(metrics.TransitionClaimed, metrics.ResultSuccess, nil)

	log := d.logger.With("job_id", item.JobID, "item_id", item.ID, "index", item.Index)

	err := d.write(ctx, "mark running", func(wctx context.Context) error {
		return d.repo.MarkRunning(wctx, item.ID)
	})
	switch {
	case apperrors.IsConflict(err):
		log.WarnContext(ctx, "item no longer claimable; skipping", "error", err)
		emit(metrics.TransitionRunning, metrics.ResultNoop, err)
		return
	case err != nil:
		log.ErrorContext(ctx, "mark running failed; leaving item for the reaper", "error", err)
		emit(metrics.TransitionRunning, metrics.ResultError, err)
		return
	}
	emit(metrics.TransitionRunning, metrics.ResultSuccess, nil)

	result, evalErr := d.evaluate(ctx, item)
	if evalErr != nil && ctx.Err() != nil {
		// Interrupted by shutdown, not a verdict. The reaper requeues the item.
		log.InfoContext(ctx, "evaluation interrupted by shutdown", "error", evalErr)
		emit(metrics.TransitionDone, metrics.ResultNoop, nil)
		return
	}
	itemResult := metrics.ResultSuccess
	if evalErr != nil {
		log.InfoContext(ctx, "item evaluation failed", "error", evalErr)
		itemResult = metrics.ResultError
	}

	err = d.write(ctx, "mark done", func(wctx context.Context) error {
		return d.repo.MarkDone(wctx, item.ID, result)
	})
	if err != nil {
		log.ErrorContext(ctx, "mark done failed; leaving item for the reaper", "error", err)
		emit(metrics.TransitionDone, metrics.ResultError, err)
		return
	}
	emit(metrics.TransitionDone, itemResult, evalErr)

	var progress *model.ProgressUpdate
	err = d.write(ctx, "recompute progress", func(wctx context.Context) error {
		var perr error
		progress, perr = d.repo.RecomputeProgress(wctx, item.JobID)
		return perr
	})
	if err != nil {
		log.ErrorContext(ctx, "recompute progress failed", "error", err)
		emit(metrics.TransitionProgress, metrics.ResultError, err)
		return
	}
	if progress == nil || !progress.Completed {
		emit(metrics.TransitionProgress, metrics.ResultNoop, nil)
		return
	}
	emit(metrics.TransitionProgress, metrics.ResultSuccess, nil)

	log.InfoContext(ctx, "job complete", "total", progress.Job.Total)
	metrics.EmitJobCompleted(d.metrics, progress.Job.Total)
	if d.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DrainTimeout+notifyGrace)
		d.notifier.Notify(nctx, progress.Job)
		cancel()
	}
}

// notifyGrace leaves room for the webhook's own timeout on top of the drain window.
const notifyGrace = 10 * time.Second

// evaluate returns the JSON to store for item. A failed evaluation still yields a result.
func (d *Dispatcher) evaluate(ctx context.Context, item *model.JobItem) ([]byte, error) {
	var req model.EligibilityRequest
	if err := json.Unmarshal(item.Payload, &req); err != nil {
		err = fmt.Errorf("decode payload: %w", err)
		return errorResult(err), err
	}

	verdict, err := d.evaluator.Evaluate(ctx, &req)
	if err != nil {
		return errorResult(err), err
	}

	raw, err := json.Marshal(verdict)
	if err != nil {
		err = fmt.Errorf("encode verdict: %w", err)
		return errorResult(err), err
	}
	return raw, nil
}

func errorResult(err error) []byte {
	raw, mErr := json.Marshal(model.ItemErrorResult{Error: err.Error()})
	if mErr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return raw
}

// write runs a store mutation on a context detached from ctx, so an in-flight item completes its
// writes during shutdown. Each attempt is bounded by the drain timeout. Failures are retried with
// backoff until the write succeeds, the store rejects it with a conflict, or ctx is cancelled.
func (d *Dispatcher) write(ctx context.Context, op string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DrainTimeout)
		err := fn(wctx)
		cancel()
		if err == nil || apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		delay := d.backoff(attempt)
		d.logger.WarnContext(ctx, "store write failed; retrying", "op", op, "error", err, "attempt", attempt, "retry_in", delay)
		d.idle(ctx, delay, nil)
	}
}

// backoff doubles from the poll interval for each consecutive failure, capped at MaxBackoff.
func (d *Dispatcher) backoff(failures int) time.Duration {
	delay := d.cfg.PollInterval
	for i := 1; i < failures && delay < d.cfg.MaxBackoff; i++ {
		delay *= 2
	}
	return min(delay, d.cfg.MaxBackoff)
}

// idle waits for delay, cancellation, or a wake signal. It reports true when wake was closed.
func (d *Dispatcher) idle(ctx context.Context, delay time.Duration, wake <-chan struct{}) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case _, ok := <-wake:
		return !ok
	}
	return false
}
