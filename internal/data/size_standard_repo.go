package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/eligibility-api/internal/data/pgxutil"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// SizeStandardRepo reads and writes the size_standards table.
type SizeStandardRepo struct {
	DB *sql.DB
}

// NewSizeStandardRepo creates a new SizeStandardRepo.
func NewSizeStandardRepo(db *sql.DB) *SizeStandardRepo {
	return &SizeStandardRepo{DB: db}
}

const sizeStandardColumns = `naics, title, basis, threshold, unit, effective_fy`

// Get returns the row for naics, or a NotFound error when the table has none.
func (r *SizeStandardRepo) Get(ctx context.Context, naics string) (*model.SizeStandard, error) {
	var (
		std   model.SizeStandard
		title sql.NullString
		fy    sql.NullInt32
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+sizeStandardColumns+` FROM size_standards WHERE naics = $1`, naics,
	).Scan(&std.NAICS, &title, &std.Basis, &std.Threshold, &std.Unit, &fy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("no size standard for NAICS %s", naics)
	}
	if err != nil {
		return nil, fmt.Errorf("get size standard: %w", apperrors.MapDBError(err))
	}

	std.Title = cloneNullableString(title)
	if fy.Valid {
		v := int(fy.Int32)
		std.EffectiveFY = &v
	}
	return &std, nil
}

// UpsertBatch validates every row and writes them in one transaction.
// Nothing is written when any row is invalid.
func (r *SizeStandardRepo) UpsertBatch(ctx context.Context, rows []model.SizeStandard) (int, error) {
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return 0, apperrors.Validationf("row %d: %v", i+1, err)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := pgxutil.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO size_standards (naics, title, basis, threshold, unit, effective_fy, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (naics) DO UPDATE
			SET title = EXCLUDED.title,
			    basis = EXCLUDED.basis,
			    threshold = EXCLUDED.threshold,
			    unit = EXCLUDED.unit,
			    effective_fy = EXCLUDED.effective_fy,
			    updated_at = now()
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range rows {
			row := rows[i]
			if _, execErr := stmt.ExecContext(ctx,
				row.NAICS, row.Title, row.Basis, row.Threshold, row.Unit, row.EffectiveFY,
			); execErr != nil {
				return fmt.Errorf("upsert %s: %w", row.NAICS, apperrors.MapDBError(execErr))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
