package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Config: config.ReaperConfig{Interval: time.Minute}})
	require.Error(t, err)
}

func TestNewRunner_PropagatesServiceValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := NewRunner(RunnerOptions{Repo: mocks.NewMockJobMaintenanceRepository(ctrl)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire reaper service")
}

func TestRunner_RequeueOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobMaintenanceRepository(ctrl)
	repo.EXPECT().
		RequeueStaleItems(gomock.Any(), core.RequeueStaleItemsParams{OlderThan: 10 * time.Minute, BatchSize: 500}).
		Return(int64(4), nil)

	r, err := NewRunner(RunnerOptions{
		Repo:   repo,
		Config: config.ReaperConfig{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 500},
	})
	require.NoError(t, err)

	n, err := r.RequeueOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
