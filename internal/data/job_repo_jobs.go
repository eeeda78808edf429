package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/target/eligibility-api/internal/data/pgxutil"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// CreateJob inserts a queued job with done = 0.
func (r *JobRepo) CreateJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (id, created_ts, status, total, done, webhook_url, requester)
		VALUES ($1, $2, 'queued', $3, 0, $4, $5)
		RETURNING `+jobColumns,
		req.ID, r.clock.Now().UTC(), req.Total, req.WebhookURL, req.Requester,
	)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// GetJob retrieves a job by its ID.
func (r *JobRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// RecomputeProgress recounts done items under a row lock on the job.
// done never decreases, and the status flips to complete iff done == total.
// Completed is set only for the call that performed that flip.
func (r *JobRepo) RecomputeProgress(ctx context.Context, jobID string) (*model.ProgressUpdate, error) {
	var update *model.ProgressUpdate
	err := pgxutil.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		current, err := scanJob(tx.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFoundf("job %s not found", jobID)
		}
		if err != nil {
			return fmt.Errorf("lock job: %w", err)
		}

		var count int
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM job_items WHERE job_id = $1 AND status = 'done'`, jobID,
		).Scan(&count); scanErr != nil {
			return fmt.Errorf("count done items: %w", scanErr)
		}

		next := nextProgress(current, count)
		updated, err := scanJob(tx.QueryRowContext(ctx, `
			UPDATE jobs SET done = $2, status = $3
			WHERE id = $1
			RETURNING `+jobColumns, jobID, next.Done, next.Status))
		if err != nil {
			return fmt.Errorf("update job progress: %w", apperrors.MapDBError(err))
		}

		update = &model.ProgressUpdate{
			Job:       updated,
			Completed: current.Status != model.JobStatusComplete && updated.Status == model.JobStatusComplete,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}

// nextProgress computes the monotonic done count and the resulting status.
func nextProgress(current *model.Job, doneCount int) model.Job {
	next := *current
	if doneCount > next.Done {
		next.Done = doneCount
	}
	if next.Done > next.Total {
		next.Done = next.Total
	}
	switch {
	case current.Status == model.JobStatusComplete || next.Done == next.Total:
		next.Status = model.JobStatusComplete
	case next.Done > 0:
		next.Status = model.JobStatusRunning
	default:
		next.Status = current.Status
	}
	return next
}

// WaitForNotification blocks until items are enqueued or ctx ends.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{notifyChannelItemsAdded}.Sanitize()
	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", notifyChannelItemsAdded, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// Stats counts items by status across all jobs.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{}
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'done')
		FROM job_items
	`).Scan(&stats.Queued, &stats.Running, &stats.Done)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", apperrors.MapDBError(err))
	}
	return stats, nil
}
