package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// AuditRepo appends rows to the audits table.
type AuditRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB, clock Clock) *AuditRepo {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AuditRepo{DB: db, clock: clock}
}

// Insert writes entry and fills in its ID and timestamp.
func (r *AuditRepo) Insert(ctx context.Context, entry *model.AuditEntry) error {
	if entry == nil {
		return apperrors.Validation("audit entry is required")
	}
	payload := jsonOrEmpty(entry.Payload)
	response := jsonOrEmpty(entry.Response)

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO audits (ts, route, payload, response)
		VALUES ($1, $2, $3::jsonb, $4::jsonb)
		RETURNING id, ts
	`, r.clock.Now().UTC(), entry.Route, string(payload), string(response)).Scan(&entry.ID, &entry.TS)
	if err != nil {
		return fmt.Errorf("insert audit: %w", apperrors.MapDBError(err))
	}
	entry.TS = entry.TS.UTC()
	return nil
}

func jsonOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}
