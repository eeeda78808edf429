package data

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/target/eligibility-api/internal/domain/model"
)

// notifyChannelItemsAdded is signalled in the same transaction that inserts job items.
const notifyChannelItemsAdded = "job_items_added"

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger *slog.Logger
	Clock  Clock
}

// JobRepo is the PostgreSQL-backed durable work queue for bulk jobs.
type JobRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRepo{
		DB:     db,
		clock:  clock,
		logger: logger.With("component", "job_repo"),
	}
}

const jobColumns = `id, created_ts, status, total, done, webhook_url, requester`

const itemColumns = `id, job_id, idx, payload, status, result, claimed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var webhook, requester sql.NullString
	if err := scanner.Scan(
		&job.ID,
		&job.CreatedAt,
		&job.Status,
		&job.Total,
		&job.Done,
		&webhook,
		&requester,
	); err != nil {
		return nil, err
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.WebhookURL = cloneNullableString(webhook)
	job.Requester = cloneNullableString(requester)
	return job, nil
}

func scanItem(scanner rowScanner) (*model.JobItem, error) {
	item := &model.JobItem{}
	var payload, result []byte
	var claimedAt sql.NullTime
	if err := scanner.Scan(
		&item.ID,
		&item.JobID,
		&item.Index,
		&payload,
		&item.Status,
		&result,
		&claimedAt,
	); err != nil {
		return nil, err
	}
	item.Payload = cloneJSON(payload)
	if len(result) > 0 {
		item.Result = cloneJSON(result)
	}
	item.ClaimedAt = cloneNullableTime(claimedAt)
	return item, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
