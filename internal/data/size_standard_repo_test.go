package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
	"github.com/target/eligibility-api/internal/testutil"
)

func TestSizeStandardRepo(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewSizeStandardRepo(db)
		ctx := context.Background()

		seeded, err := repo.Get(ctx, "336611")
		require.NoError(t, err)
		assert.Equal(t, model.SizeBasisEmployees, seeded.Basis)
		assert.InDelta(t, 1300.0, seeded.Threshold, 0)

		_, err = repo.Get(ctx, "999999")
		assert.True(t, apperrors.IsNotFound(err))

		fy := 2026
		n, err := repo.UpsertBatch(ctx, []model.SizeStandard{
			{NAICS: "999999", Title: testutil.StringPtr("Test"), Basis: model.SizeBasisReceipts, Threshold: 1000, Unit: "USD", EffectiveFY: &fy},
			{NAICS: "336611", Basis: model.SizeBasisEmployees, Threshold: 1500, Unit: "employees"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := repo.Get(ctx, "999999")
		require.NoError(t, err)
		require.NotNil(t, got.EffectiveFY)
		assert.Equal(t, 2026, *got.EffectiveFY)

		updated, err := repo.Get(ctx, "336611")
		require.NoError(t, err)
		assert.InDelta(t, 1500.0, updated.Threshold, 0)
		assert.Nil(t, updated.Title)

		_, err = repo.UpsertBatch(ctx, []model.SizeStandard{
			{NAICS: "111111", Basis: model.SizeBasisReceipts, Threshold: 1, Unit: "USD"},
			{NAICS: "bad", Basis: model.SizeBasisReceipts, Threshold: 1, Unit: "USD"},
		})
		assert.True(t, apperrors.IsValidation(err))
		_, err = repo.Get(ctx, "111111")
		assert.True(t, apperrors.IsNotFound(err), "invalid batch writes nothing")
	})
}

func TestAuditRepo_Insert(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db, NewManualClock(testutil.TestTime()))
		entry := &model.AuditEntry{
			Route:    "/v1/eligibility/check",
			Payload:  json.RawMessage(`{"naics":"541511"}`),
			Response: json.RawMessage(`{"eligible":true}`),
		}
		require.NoError(t, repo.Insert(context.Background(), entry))
		assert.NotZero(t, entry.ID)
		assert.True(t, testutil.TestTime().Equal(entry.TS))

		assert.Error(t, repo.Insert(context.Background(), nil))
	})
}
