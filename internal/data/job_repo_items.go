package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/eligibility-api/internal/data/pgxutil"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// SQL used by ClaimNextQueuedItem to atomically claim the oldest queued item.
const claimNextItemSQL = `
  WITH cte AS (
    SELECT id FROM job_items
    WHERE status = 'queued'
    ORDER BY id ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE job_items i
  SET status = 'running',
      claimed_at = $1
  FROM cte
  WHERE i.id = cte.id
  RETURNING i.id, i.job_id, i.idx, i.payload, i.status, i.result, i.claimed_at`

// AddItems inserts one queued item per payload, indexed 0..n-1, in a single transaction.
// The job must exist, must not already have items, and len(payloads) must equal its total.
func (r *JobRepo) AddItems(ctx context.Context, jobID string, payloads [][]byte) error {
	docs, err := itemDocs(payloads)
	if err != nil {
		return err
	}

	return pgxutil.InPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		var total int
		err := tx.QueryRow(ctx, `SELECT total FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&total)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFoundf("job %s not found", jobID)
		}
		if err != nil {
			return fmt.Errorf("lock job: %w", apperrors.MapDBError(err))
		}
		if total != len(docs) {
			return apperrors.Validationf("job %s expects %d items, got %d", jobID, total, len(docs))
		}

		var existing bool
		if scanErr := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM job_items WHERE job_id = $1)`, jobID,
		).Scan(&existing); scanErr != nil {
			return fmt.Errorf("check existing items: %w", scanErr)
		}
		if existing {
			return apperrors.Conflict("job already has items")
		}

		return insertItemsTx(ctx, tx, jobID, docs)
	})
}

// CreateJobWithItems inserts a queued job and all of its items in one transaction,
// so a failure at any step leaves neither the job row nor any item behind.
func (r *JobRepo) CreateJobWithItems(
	ctx context.Context,
	req *model.CreateJobRequest,
	payloads [][]byte,
) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job")
	}
	if req.Total != len(payloads) {
		return nil, apperrors.Validationf("job expects %d items, got %d", req.Total, len(payloads))
	}
	docs, err := itemDocs(payloads)
	if err != nil {
		return nil, err
	}

	var job *model.Job
	err = pgxutil.InPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		created, scanErr := scanJob(tx.QueryRow(ctx, `
			INSERT INTO jobs (id, created_ts, status, total, done, webhook_url, requester)
			VALUES ($1, $2, 'queued', $3, 0, $4, $5)
			RETURNING `+jobColumns,
			req.ID, r.clock.Now().UTC(), req.Total, req.WebhookURL, req.Requester,
		))
		if scanErr != nil {
			return fmt.Errorf("insert job: %w", apperrors.MapDBError(scanErr))
		}
		if insertErr := insertItemsTx(ctx, tx, created.ID, docs); insertErr != nil {
			return insertErr
		}
		job = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// itemDocs checks each payload is JSON and returns them as text for the unnest insert.
func itemDocs(payloads [][]byte) ([]string, error) {
	if len(payloads) == 0 {
		return nil, apperrors.Validation("at least one item is required")
	}
	docs := make([]string, len(payloads))
	for i, p := range payloads {
		if !json.Valid(p) {
			return nil, apperrors.Validationf("item %d payload is not valid JSON", i)
		}
		docs[i] = string(p)
	}
	return docs, nil
}

// insertItemsTx inserts docs as queued items 0..n-1 and wakes idle dispatchers on commit.
func insertItemsTx(ctx context.Context, tx pgx.Tx, jobID string, docs []string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO job_items (job_id, idx, payload, status)
		SELECT $1, t.ord - 1, t.doc::jsonb, 'queued'
		FROM unnest($2::text[]) WITH ORDINALITY AS t(doc, ord)
	`, jobID, docs); err != nil {
		return fmt.Errorf("insert job items: %w", apperrors.MapDBError(err))
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, notifyChannelItemsAdded, jobID); err != nil {
		return fmt.Errorf("send job items notification: %w", err)
	}
	return nil
}

// ClaimNextQueuedItem marks the lowest-id queued item running and returns it.
// It returns model.ErrNoItemsAvailable when the queue is empty.
func (r *JobRepo) ClaimNextQueuedItem(ctx context.Context) (*model.JobItem, error) {
	row := r.DB.QueryRowContext(ctx, claimNextItemSQL, r.clock.Now().UTC())
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoItemsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim next item: %w", apperrors.MapDBError(err))
	}
	return item, nil
}

// MarkRunning moves a queued item to running. It is a no-op for an item already running.
func (r *JobRepo) MarkRunning(ctx context.Context, itemID int64) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE job_items
		SET status = 'running',
		    claimed_at = COALESCE(claimed_at, $2)
		WHERE id = $1 AND status IN ('queued', 'running')
	`, itemID, r.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark item running: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	status, err := r.itemStatus(ctx, itemID)
	if err != nil {
		return err
	}
	return apperrors.Conflict(fmt.Sprintf("item %d is %s", itemID, status))
}

// MarkDone records the terminal result for an item. A nil result is rejected.
// When the item is already done the first recorded result is kept.
func (r *JobRepo) MarkDone(ctx context.Context, itemID int64, result []byte) error {
	if result == nil {
		return apperrors.ValidationField("result", "result is required")
	}
	if !json.Valid(result) {
		return apperrors.ValidationField("result", "result is not valid JSON")
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE job_items
		SET status = 'done', result = $2::jsonb
		WHERE id = $1 AND status <> 'done'
	`, itemID, string(result))
	if err != nil {
		return fmt.Errorf("mark item done: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	status, err := r.itemStatus(ctx, itemID)
	if err != nil {
		return err
	}
	r.logger.WarnContext(ctx, "item already done; keeping first result", "item_id", itemID, "status", status)
	return nil
}

func (r *JobRepo) itemStatus(ctx context.Context, itemID int64) (model.ItemStatus, error) {
	var status model.ItemStatus
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM job_items WHERE id = $1`, itemID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFoundf("job item %d not found", itemID)
	}
	if err != nil {
		return "", fmt.Errorf("get item status: %w", apperrors.MapDBError(err))
	}
	return status, nil
}

// ListItems returns every item of a job ordered by index.
func (r *JobRepo) ListItems(ctx context.Context, jobID string) ([]*model.JobItem, error) {
	if _, err := r.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM job_items WHERE job_id = $1 ORDER BY idx ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job items: %w", apperrors.MapDBError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			r.logger.WarnContext(ctx, "close item rows", "error", cerr)
		}
	}()

	items := make([]*model.JobItem, 0)
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job item: %w", scanErr)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job items: %w", err)
	}
	return items, nil
}
