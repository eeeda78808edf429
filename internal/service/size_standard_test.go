package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
	"github.com/target/eligibility-api/internal/mocks"
)

const sizeCSV = `naics,title,basis,threshold,unit,effective_fy
541511,Custom Computer Programming Services,receipts,34500000,USD,2025

336611,,Employees,1300,employees,
`

func TestParseSizeStandardsCSV(t *testing.T) {
	rows, err := ParseSizeStandardsCSV(strings.NewReader(sizeCSV))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "541511", rows[0].NAICS)
	require.NotNil(t, rows[0].Title)
	require.NotNil(t, rows[0].EffectiveFY)
	assert.Equal(t, 2025, *rows[0].EffectiveFY)

	assert.Equal(t, model.SizeBasisEmployees, rows[1].Basis)
	assert.Nil(t, rows[1].Title)
	assert.Nil(t, rows[1].EffectiveFY)
}

func TestParseSizeStandardsCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "empty", input: "", wantMsg: "csv is empty"},
		{name: "missing column", input: "naics,basis,unit\n541511,receipts,USD\n", wantMsg: `missing column "threshold"`},
		{name: "header only", input: "naics,basis,threshold,unit\n", wantMsg: "no data rows"},
		{name: "bad threshold", input: "naics,basis,threshold,unit\n541511,receipts,lots,USD\n", wantMsg: "line 2"},
		{name: "bad naics", input: "naics,basis,threshold,unit\n5415,receipts,1,USD\n", wantMsg: "naics must be a 6-digit code"},
		{name: "bad fy", input: "naics,basis,threshold,unit,effective_fy\n541511,receipts,1,USD,FY25\n", wantMsg: "effective_fy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSizeStandardsCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSizeStandardService_ImportCSV(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSizeStandardRepository(ctrl)
	svc, err := NewSizeStandardService(SizeStandardServiceOptions{Repo: repo})
	require.NoError(t, err)

	repo.EXPECT().UpsertBatch(gomock.Any(), gomock.Len(2)).Return(2, nil)
	n, err := svc.ImportCSV(context.Background(), strings.NewReader(sizeCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	repo.EXPECT().UpsertBatch(gomock.Any(), gomock.Any()).Return(0, errors.New("tx aborted"))
	_, err = svc.ImportCSV(context.Background(), strings.NewReader(sizeCSV))
	require.Error(t, err)

	// Invalid input never reaches the repository.
	_, err = svc.ImportCSV(context.Background(), strings.NewReader("naics\n"))
	assert.True(t, apperrors.IsValidation(err))
}
