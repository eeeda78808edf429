package core

import (
	"context"
	"time"

	"github.com/target/eligibility-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations and the dispatcher depend on these interfaces, not on concrete implementations.

// JobRepository defines the durable work-queue operations for bulk jobs.
type JobRepository interface {
	CreateJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	// CreateJobWithItems creates the job and enqueues every item atomically.
	CreateJobWithItems(ctx context.Context, req *model.CreateJobRequest, payloads [][]byte) (*model.Job, error)
	AddItems(ctx context.Context, jobID string, payloads [][]byte) error
	ClaimNextQueuedItem(ctx context.Context) (*model.JobItem, error)
	MarkRunning(ctx context.Context, itemID int64) error
	MarkDone(ctx context.Context, itemID int64, result []byte) error
	RecomputeProgress(ctx context.Context, jobID string) (*model.ProgressUpdate, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListItems(ctx context.Context, jobID string) ([]*model.JobItem, error)
	WaitForNotification(ctx context.Context) error
}

// JobMaintenanceRepository covers the operator and reaper side of the queue.
type JobMaintenanceRepository interface {
	RequeueStaleItems(ctx context.Context, params RequeueStaleItemsParams) (int64, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// RequeueStaleItemsParams groups parameters for RequeueStaleItems to keep param count ≤3.
type RequeueStaleItemsParams struct {
	OlderThan time.Duration
	BatchSize int
}

// SizeStandardRepository defines access to the size-standard table.
type SizeStandardRepository interface {
	Get(ctx context.Context, naics string) (*model.SizeStandard, error)
	UpsertBatch(ctx context.Context, rows []model.SizeStandard) (int, error)
}

// AuditRepository persists a record of each synchronous evaluation.
type AuditRepository interface {
	Insert(ctx context.Context, entry *model.AuditEntry) error
}

// ExclusionsLookup queries the exclusions source for an identifier.
// A not-found answer is an empty result, not an error.
type ExclusionsLookup interface {
	LookupExclusions(ctx context.Context, id model.Identifier) (*model.ExclusionsResult, error)
}

// RegistrationLookup queries the entity registration source for an identifier.
// A not-found answer is a result with Active == nil, not an error.
type RegistrationLookup interface {
	LookupRegistration(ctx context.Context, id model.Identifier) (*model.RegistrationResult, error)
}

// Evaluator runs one eligibility evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, req *model.EligibilityRequest) (*model.EligibilityVerdict, error)
}

// CompletionNotifier delivers the completion callback for a job. Delivery is best effort.
type CompletionNotifier interface {
	Notify(ctx context.Context, job *model.Job)
}
