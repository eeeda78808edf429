package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/eligibility-api/internal/bootstrap"
	"github.com/target/eligibility-api/internal/data"
	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/migrate"
	"github.com/target/eligibility-api/internal/service"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

type migrateOptions struct {
	Timeout time.Duration
	Status  bool
}

type importOptions struct {
	File    string
	Timeout time.Duration
}

type jobStatusOptions struct {
	JobID   string
	Timeout time.Duration
}

type requeueOptions struct {
	OlderThan time.Duration
	BatchSize int
	Timeout   time.Duration
}

// withDB connects to Postgres for the duration of fn under a signal-aware timeout.
func withDB(cmdCtx *commandContext, timeout time.Duration, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	return fn(ctx, db)
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDB(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		if opts.Status {
			statuses, listErr := migrate.List(ctx, db)
			if listErr != nil {
				return fmt.Errorf("list migrations: %w", listErr)
			}
			return printMigrationStatus(cmdCtx.Out, statuses)
		}

		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runImportSizeStandards(cmdCtx *commandContext, args []string) error {
	opts, err := parseImportFlags(args)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.File, err)
	}
	defer func() { _ = f.Close() }()

	return withDB(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		svc, svcErr := service.NewSizeStandardService(service.SizeStandardServiceOptions{
			Repo:   data.NewSizeStandardRepo(db),
			Logger: cmdCtx.Logger,
		})
		if svcErr != nil {
			return svcErr
		}
		return importSizeStandards(ctx, cmdCtx.Out, svc, f)
	})
}

func importSizeStandards(ctx context.Context, w io.Writer, svc *service.SizeStandardService, r io.Reader) error {
	n, err := svc.ImportCSV(ctx, r)
	if err != nil {
		return fmt.Errorf("import size standards: %w", err)
	}
	return writef(w, "imported %d size standards\n", n)
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatusFlags(args)
	if err != nil {
		return err
	}

	return withDB(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
		if opts.JobID == "" {
			stats, statsErr := repo.Stats(ctx)
			if statsErr != nil {
				return fmt.Errorf("queue stats: %w", statsErr)
			}
			return printQueueStats(cmdCtx.Out, stats)
		}

		job, getErr := repo.GetJob(ctx, opts.JobID)
		if getErr != nil {
			return fmt.Errorf("get job %s: %w", opts.JobID, getErr)
		}
		return printJob(cmdCtx.Out, job)
	})
}

func runRequeueStale(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequeueFlags(args)
	if err != nil {
		return err
	}

	reaperCfg := cmdCtx.Config.Reaper
	if opts.OlderThan > 0 {
		reaperCfg.StaleAfter = opts.OlderThan
	}
	if opts.BatchSize > 0 {
		reaperCfg.BatchSize = opts.BatchSize
	}

	return withDB(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		runner, runnerErr := bootstrap.NewReaperRunner(bootstrap.ReaperConfig{
			DB:     db,
			Config: reaperCfg,
			Logger: cmdCtx.Logger,
		})
		if runnerErr != nil {
			return runnerErr
		}
		count, requeueErr := runner.RequeueOnce(ctx)
		if requeueErr != nil {
			return fmt.Errorf("requeue stale items: %w", requeueErr)
		}
		return writef(cmdCtx.Out, "requeued %d items running longer than %s\n", count, reaperCfg.StaleAfter)
	})
}

func printMigrationStatus(w io.Writer, statuses []migrate.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "VERSION\tAPPLIED\n"); err != nil {
		return err
	}
	for _, s := range statuses {
		if err := writef(tw, "%s\t%t\n", s.Version, s.Applied); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printQueueStats(w io.Writer, stats *model.JobStats) error {
	if stats == nil {
		return errors.New("no stats returned")
	}
	return writef(w, "queued: %d\nrunning: %d\ndone: %d\n", stats.Queued, stats.Running, stats.Done)
}

func printJob(w io.Writer, job *model.Job) error {
	if job == nil {
		return errors.New("no job returned")
	}
	webhook := "-"
	if job.HasWebhook() {
		webhook = *job.WebhookURL
	}
	return writef(w, "Job: %s\nStatus: %s\nProgress: %d/%d\nCreated: %s\nWebhook: %s\n",
		job.ID, job.Status, job.Done, job.Total, job.CreatedAt.UTC().Format(time.RFC3339), webhook)
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")
	fs.BoolVar(&opts.Status, "status", false, "List migrations and whether each is applied")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseImportFlags(args []string) (importOptions, error) {
	fs := flag.NewFlagSet("import-size-standards", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := importOptions{Timeout: defaultCommandTimeout}
	fs.StringVar(&opts.File, "file", "", "CSV file with headers "+strings.Join(service.SizeStandardCSVHeaders, ",")+" (required)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the import")

	if err := fs.Parse(args); err != nil {
		return importOptions{}, err
	}
	opts.File = strings.TrimSpace(opts.File)
	if opts.File == "" {
		return importOptions{}, errors.New("--file is required")
	}
	if opts.Timeout <= 0 {
		return importOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseJobStatusFlags(args []string) (jobStatusOptions, error) {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobStatusOptions{Timeout: defaultCommandTimeout}
	fs.StringVar(&opts.JobID, "job-id", "", "Job ID to inspect; queue-wide counts when empty")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the query")

	if err := fs.Parse(args); err != nil {
		return jobStatusOptions{}, err
	}
	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.Timeout <= 0 {
		return jobStatusOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseRequeueFlags(args []string) (requeueOptions, error) {
	fs := flag.NewFlagSet("requeue-stale", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := requeueOptions{Timeout: defaultCommandTimeout}
	fs.DurationVar(&opts.OlderThan, "older-than", 0, "Requeue items running longer than this (default ELIG_ITEM_STALE_AFTER)")
	fs.IntVar(&opts.BatchSize, "batch-size", 0, "Rows per statement (default REAPER_BATCH_SIZE)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the pass")

	if err := fs.Parse(args); err != nil {
		return requeueOptions{}, err
	}
	if opts.OlderThan < 0 {
		return requeueOptions{}, errors.New("--older-than must not be negative")
	}
	if opts.BatchSize < 0 {
		return requeueOptions{}, errors.New("--batch-size must not be negative")
	}
	if opts.Timeout <= 0 {
		return requeueOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}
