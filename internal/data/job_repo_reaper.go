package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Two-arg pg_try_advisory_xact_lock(major, minor) keeps the keys namespaced.
const (
	advisoryLockReaperMajor        = 2000
	advisoryLockReaperRequeueStale = 1
)

// RequeueStaleItems puts items that have been running longer than OlderThan back to queued.
// Processes up to BatchSize items per call. When another reaper holds the lock it returns 0.
func (r *JobRepo) RequeueStaleItems(ctx context.Context, params core.RequeueStaleItemsParams) (int64, error) {
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if params.OlderThan <= 0 {
		return 0, errors.New("stale threshold must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
			advisoryLockReaperMajor, advisoryLockReaperRequeueStale).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		cutoff := r.clock.Now().Add(-params.OlderThan).UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE job_items
			SET status = 'queued',
			    claimed_at = NULL
			WHERE id IN (
				SELECT id FROM job_items
				WHERE status = 'running'
				  AND claimed_at < $1
				ORDER BY claimed_at
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)
		`, cutoff, params.BatchSize)
		if err != nil {
			return fmt.Errorf("requeue stale items: %w", err)
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
