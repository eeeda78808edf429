// Package model defines the core data types shared by the eligibility service, its job queue, and its adapters.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the aggregate status of a bulk job.
type JobStatus string

// ItemStatus represents the status of a single queued evaluation.
type ItemStatus string

const (
	// JobStatusQueued indicates no item of the job has been completed yet.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates the job has started but not every item is done.
	JobStatusRunning JobStatus = "running"
	// JobStatusComplete indicates done == total. Terminal.
	JobStatusComplete JobStatus = "complete"

	// ItemStatusQueued indicates the item is waiting for the dispatcher.
	ItemStatusQueued ItemStatus = "queued"
	// ItemStatusRunning indicates the item has been claimed.
	ItemStatusRunning ItemStatus = "running"
	// ItemStatusDone indicates the item carries a terminal result.
	ItemStatusDone ItemStatus = "done"
)

// ErrNoItemsAvailable is returned when there is no queued item to claim.
var ErrNoItemsAvailable = errors.New("no job items available")

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusComplete
}

// Valid returns true if the ItemStatus is valid.
func (s ItemStatus) Valid() bool {
	return s == ItemStatusQueued || s == ItemStatusRunning || s == ItemStatusDone
}

// Job is a bulk submission of evaluation requests tracked with aggregate progress.
type Job struct {
	ID         string    `json:"id"                    db:"id"`
	CreatedAt  time.Time `json:"created_ts"            db:"created_ts"`
	Status     JobStatus `json:"status"                db:"status"`
	Total      int       `json:"total"                 db:"total"`
	Done       int       `json:"done"                  db:"done"`
	WebhookURL *string   `json:"webhook_url,omitempty" db:"webhook_url"`
	Requester  *string   `json:"-"                     db:"requester"`
}

// HasWebhook reports whether a completion callback is configured.
func (j *Job) HasWebhook() bool {
	return j != nil && j.WebhookURL != nil && strings.TrimSpace(*j.WebhookURL) != ""
}

// JobItem is one evaluation request inside a job.
type JobItem struct {
	ID        int64           `json:"-"                    db:"id"`
	JobID     string          `json:"-"                    db:"job_id"`
	Index     int             `json:"index"                db:"idx"`
	Payload   json.RawMessage `json:"payload"              db:"payload"`
	Status    ItemStatus      `json:"status"               db:"status"`
	Result    json.RawMessage `json:"result"               db:"result"`
	ClaimedAt *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
}

// CreateJobRequest represents a request to create a new job row.
type CreateJobRequest struct {
	ID         string
	Total      int
	WebhookURL *string
	Requester  *string
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("job id must be a UUID: %w", err)
	}
	if r.Total < 1 {
		return errors.New("total must be >= 1")
	}
	return nil
}

// ProgressUpdate is the outcome of recomputing a job's done count.
type ProgressUpdate struct {
	Job *Job
	// Completed is true only for the call that moved the job to complete.
	Completed bool
}

// ItemErrorResult is the terminal result recorded for an item whose evaluation failed.
type ItemErrorResult struct {
	Error string `json:"error"`
}

// JobStats summarises item states across the queue.
type JobStats struct {
	Queued  int `json:"queued"`
	Running int `json:"running"`
	Done    int `json:"done"`
}
