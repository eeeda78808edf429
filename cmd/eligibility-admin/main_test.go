package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/migrate"
	"github.com/target/eligibility-api/internal/mocks"
	"github.com/target/eligibility-api/internal/service"
	"github.com/target/eligibility-api/internal/testutil"
)

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	require.Contains(t, out, "Usage: eligibility-admin <command> [flags]")
	names := []string{"import-size-standards", "job-status", "migrate", "requeue-stale"}
	last := -1
	for _, name := range names {
		idx := strings.Index(out, "  "+name)
		require.Greater(t, idx, last, "command %s missing or out of order", name)
		last = idx
	}
}

func TestParseFlags(t *testing.T) {
	t.Run("migrate defaults", func(t *testing.T) {
		opts, err := parseMigrateFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, defaultMigrationTimeout, opts.Timeout)
		assert.False(t, opts.Status)
	})

	t.Run("migrate rejects zero timeout", func(t *testing.T) {
		_, err := parseMigrateFlags([]string{"--timeout", "0s"})
		require.Error(t, err)
	})

	t.Run("import requires file", func(t *testing.T) {
		_, err := parseImportFlags(nil)
		require.EqualError(t, err, "--file is required")

		opts, err := parseImportFlags([]string{"--file", " sizes.csv "})
		require.NoError(t, err)
		assert.Equal(t, "sizes.csv", opts.File)
	})

	t.Run("job status trims id", func(t *testing.T) {
		opts, err := parseJobStatusFlags([]string{"--job-id", " abc "})
		require.NoError(t, err)
		assert.Equal(t, "abc", opts.JobID)
	})

	t.Run("requeue overrides", func(t *testing.T) {
		opts, err := parseRequeueFlags([]string{"--older-than", "30m", "--batch-size", "50"})
		require.NoError(t, err)
		assert.Equal(t, 30*time.Minute, opts.OlderThan)
		assert.Equal(t, 50, opts.BatchSize)

		_, err = parseRequeueFlags([]string{"--batch-size", "-1"})
		require.Error(t, err)
	})
}

func TestImportSizeStandards(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSizeStandardRepository(ctrl)
	svc, err := service.NewSizeStandardService(service.SizeStandardServiceOptions{Repo: repo})
	require.NoError(t, err)

	repo.EXPECT().UpsertBatch(gomock.Any(), gomock.Len(1)).Return(1, nil)

	var buf bytes.Buffer
	csv := "naics,title,basis,threshold,unit,effective_fy\n541511,,receipts,34500000,USD,2025\n"
	require.NoError(t, importSizeStandards(context.Background(), &buf, svc, strings.NewReader(csv)))
	assert.Equal(t, "imported 1 size standards\n", buf.String())
}

func TestImportSizeStandards_InvalidRowWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSizeStandardRepository(ctrl)
	svc, err := service.NewSizeStandardService(service.SizeStandardServiceOptions{Repo: repo})
	require.NoError(t, err)

	var buf bytes.Buffer
	csv := "naics,title,basis,threshold,unit,effective_fy\n12,,receipts,1,USD,2025\n"
	err = importSizeStandards(context.Background(), &buf, svc, strings.NewReader(csv))
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestPrintJob(t *testing.T) {
	var buf bytes.Buffer
	job := &model.Job{
		ID:         "job-1",
		Status:     model.JobStatusRunning,
		Total:      3,
		Done:       1,
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		WebhookURL: testutil.StringPtr("https://hooks.example.com/done"),
	}
	require.NoError(t, printJob(&buf, job))

	out := buf.String()
	assert.Contains(t, out, "Job: job-1")
	assert.Contains(t, out, "Progress: 1/3")
	assert.Contains(t, out, "Created: 2025-03-01T12:00:00Z")
	assert.Contains(t, out, "Webhook: https://hooks.example.com/done")

	require.Error(t, printJob(&buf, nil))
}

func TestPrintQueueStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printQueueStats(&buf, &model.JobStats{Queued: 4, Running: 1, Done: 9}))
	assert.Equal(t, "queued: 4\nrunning: 1\ndone: 9\n", buf.String())
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printMigrationStatus(&buf, []migrate.Status{
		{Version: "001_init", Applied: true},
		{Version: "002_audits", Applied: false},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"VERSION", "APPLIED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"001_init", "true"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"002_audits", "false"}, strings.Fields(lines[2]))
}
