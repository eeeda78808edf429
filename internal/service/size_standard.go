package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// SizeStandardCSVHeaders lists the columns an import file must carry.
var SizeStandardCSVHeaders = []string{"naics", "title", "basis", "threshold", "unit", "effective_fy"}

var requiredSizeColumns = []string{"naics", "basis", "threshold", "unit"}

// SizeStandardServiceOptions groups dependencies for SizeStandardService.
type SizeStandardServiceOptions struct {
	Repo   core.SizeStandardRepository // Required: size-standard table
	Logger *slog.Logger                // Optional: structured logger
}

// SizeStandardService imports SBA size-standard rows.
type SizeStandardService struct {
	repo   core.SizeStandardRepository
	logger *slog.Logger
}

// NewSizeStandardService constructs a new SizeStandardService.
func NewSizeStandardService(opts SizeStandardServiceOptions) (*SizeStandardService, error) {
	if opts.Repo == nil {
		return nil, errors.New("SizeStandardRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SizeStandardService{
		repo:   opts.Repo,
		logger: logger.With("component", "size_standard_service"),
	}, nil
}

// ImportCSV parses every row before writing any, then upserts the batch in one transaction.
// It returns the number of rows written.
func (s *SizeStandardService) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	rows, err := ParseSizeStandardsCSV(r)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.UpsertBatch(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("upsert size standards: %w", err)
	}

	s.logger.InfoContext(ctx, "size standards imported", "rows", n)
	return n, nil
}

// ParseSizeStandardsCSV reads a header row followed by data rows. Column order is free;
// title and effective_fy may be blank.
func ParseSizeStandardsCSV(r io.Reader) ([]model.SizeStandard, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.Validation("csv is empty")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "read csv header")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredSizeColumns {
		if _, ok := cols[c]; !ok {
			return nil, apperrors.Validationf("csv is missing column %q; expected headers: %s",
				c, strings.Join(SizeStandardCSVHeaders, ","))
		}
	}

	var rows []model.SizeStandard
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "read csv")
		}
		if isBlankRecord(rec) {
			continue
		}

		row, err := parseSizeRecord(rec, cols)
		if err != nil {
			return nil, apperrors.Validationf("line %d: %v", line, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, apperrors.Validation("csv has no data rows")
	}
	return rows, nil
}

func parseSizeRecord(rec []string, cols map[string]int) (model.SizeStandard, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	threshold, err := strconv.ParseFloat(get("threshold"), 64)
	if err != nil {
		return model.SizeStandard{}, fmt.Errorf("threshold %q is not a number", get("threshold"))
	}

	row := model.SizeStandard{
		NAICS:     get("naics"),
		Basis:     model.SizeBasisKind(strings.ToLower(get("basis"))),
		Threshold: threshold,
		Unit:      get("unit"),
	}
	if title := get("title"); title != "" {
		row.Title = &title
	}
	if fy := get("effective_fy"); fy != "" {
		v, err := strconv.Atoi(fy)
		if err != nil {
			return model.SizeStandard{}, fmt.Errorf("effective_fy %q is not an integer", fy)
		}
		row.EffectiveFY = &v
	}

	if err := row.Validate(); err != nil {
		return model.SizeStandard{}, err
	}
	return row, nil
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
