package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/eligibility-api/config"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
	"github.com/target/eligibility-api/internal/mocks"
	"github.com/target/eligibility-api/internal/testutil"
	"go.uber.org/mock/gomock"
)

type recordingSink struct {
	mu     sync.Mutex
	counts []recordedMetric
}

type recordedMetric struct {
	name string
	tags map[string]string
}

func (s *recordingSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, recordedMetric{name: name, tags: tags})
}

func (s *recordingSink) Gauge(string, float64, map[string]string)       {}
func (s *recordingSink) Timing(string, time.Duration, map[string]string) {}

func (s *recordingSink) transitions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.counts {
		if m.name == "job.item_transition" {
			out = append(out, m.tags["transition"]+":"+m.tags["result"])
		}
	}
	return out
}

type fixture struct {
	ctrl      *gomock.Controller
	repo      *mocks.MockJobRepository
	evaluator *mocks.MockEvaluator
	notifier  *mocks.MockCompletionNotifier
	sink      *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	return &fixture{
		ctrl:      ctrl,
		repo:      mocks.NewMockJobRepository(ctrl),
		evaluator: mocks.NewMockEvaluator(ctrl),
		notifier:  mocks.NewMockCompletionNotifier(ctrl),
		sink:      &recordingSink{},
	}
}

func (f *fixture) dispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(Options{
		Repo:      f.repo,
		Evaluator: f.evaluator,
		Notifier:  f.notifier,
		Config: config.DispatcherConfig{
			PollInterval: time.Millisecond,
			MaxBackoff:   4 * time.Millisecond,
			DrainTimeout: time.Second,
		},
		Metrics: f.sink,
	})
	require.NoError(t, err)
	return d
}

// claimOnce hands out item on the first claim and cancels the run on the next one.
func (f *fixture) claimOnce(item *model.JobItem, cancel context.CancelFunc) {
	gomock.InOrder(
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(item, nil),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).DoAndReturn(func(context.Context) (*model.JobItem, error) {
			cancel()
			return nil, context.Canceled
		}),
	)
}

func newItem(payload []byte) *model.JobItem {
	return &model.JobItem{ID: 7, JobID: "550e8400-e29b-41d4-a716-446655440000", Index: 0, Payload: payload, Status: model.ItemStatusRunning}
}

func TestNew_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := New(Options{Evaluator: mocks.NewMockEvaluator(ctrl)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JobRepository is required")

	_, err = New(Options{Repo: mocks.NewMockJobRepository(ctrl)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluator is required")

	d, err := New(Options{Repo: mocks.NewMockJobRepository(ctrl), Evaluator: mocks.NewMockEvaluator(ctrl)})
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d.cfg.PollInterval)
	assert.Equal(t, 5*time.Second, d.cfg.DrainTimeout)
}

func TestRun_EvaluatesItemAndNotifiesOnCompletion(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := newItem(testutil.NewEligibilityRequest().JSON())
	verdict := &model.EligibilityVerdict{Eligible: true, Summary: "No exclusions; active SAM; size evidence required"}
	job := &model.Job{ID: item.JobID, Status: model.JobStatusComplete, Total: 1, Done: 1}

	f.claimOnce(item, cancel)
	f.repo.EXPECT().MarkRunning(gomock.Any(), int64(7)).Return(nil)
	f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.EligibilityRequest) (*model.EligibilityVerdict, error) {
			assert.Equal(t, "ABCDEF123456", req.Identifier.UEI)
			assert.Equal(t, "541511", req.NAICS)
			return verdict, nil
		})

	var stored []byte
	f.repo.EXPECT().MarkDone(gomock.Any(), int64(7), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result []byte) error {
			stored = result
			return nil
		})
	f.repo.EXPECT().RecomputeProgress(gomock.Any(), item.JobID).
		Return(&model.ProgressUpdate{Job: job, Completed: true}, nil)
	f.notifier.EXPECT().Notify(gomock.Any(), job).Times(1)

	require.NoError(t, f.dispatcher(t).Run(ctx))

	var got model.EligibilityVerdict
	require.NoError(t, json.Unmarshal(stored, &got))
	assert.True(t, got.Eligible)
	assert.Equal(t, verdict.Summary, got.Summary)

	assert.Equal(t, []string{
		"claimed:success",
		"running:success",
		"done:success",
		"progress:success",
	}, f.sink.transitions())
}

func TestRun_EvaluationFailureStoresErrorResult(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := newItem(testutil.NewEligibilityRequest().JSON())

	f.claimOnce(item, cancel)
	f.repo.EXPECT().MarkRunning(gomock.Any(), int64(7)).Return(nil)
	f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.UpstreamUnavailable("exclusions", errors.New("status 503")))

	var stored []byte
	f.repo.EXPECT().MarkDone(gomock.Any(), int64(7), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result []byte) error {
			stored = result
			return nil
		})
	f.repo.EXPECT().RecomputeProgress(gomock.Any(), item.JobID).
		Return(&model.ProgressUpdate{Job: &model.Job{ID: item.JobID, Total: 2, Done: 1}}, nil)

	require.NoError(t, f.dispatcher(t).Run(ctx))

	var got model.ItemErrorResult
	require.NoError(t, json.Unmarshal(stored, &got))
	assert.Contains(t, got.Error, "status 503")
	assert.Contains(t, f.sink.transitions(), "done:error")
	assert.Contains(t, f.sink.transitions(), "progress:noop")
}

// A failing middle item is recorded as an error result and does not hold the job back:
// all three items are marked done and the webhook fires once, after the last one.
func TestRun_JobWithFailingItemCompletesAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const jobID = "550e8400-e29b-41d4-a716-446655440000"
	items := make([]*model.JobItem, 3)
	for i := range items {
		items[i] = &model.JobItem{
			ID:      int64(i + 1),
			JobID:   jobID,
			Index:   i,
			Payload: testutil.NewEligibilityRequest().JSON(),
			Status:  model.ItemStatusRunning,
		}
	}
	finished := &model.Job{ID: jobID, Status: model.JobStatusComplete, Total: 3, Done: 3}

	gomock.InOrder(
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(items[0], nil),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(items[1], nil),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(items[2], nil),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).DoAndReturn(func(context.Context) (*model.JobItem, error) {
			cancel()
			return nil, context.Canceled
		}),
	)
	f.repo.EXPECT().MarkRunning(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	gomock.InOrder(
		f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&model.EligibilityVerdict{Eligible: true}, nil),
		f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.UpstreamUnavailable("exclusions", errors.New("status 503"))),
		f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&model.EligibilityVerdict{Eligible: false}, nil),
	)

	stored := map[int64][]byte{}
	f.repo.EXPECT().MarkDone(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int64, result []byte) error {
			stored[id] = result
			return nil
		}).Times(3)

	completed := f.repo.EXPECT().RecomputeProgress(gomock.Any(), jobID).
		Return(&model.ProgressUpdate{Job: finished, Completed: true}, nil)
	gomock.InOrder(
		f.repo.EXPECT().RecomputeProgress(gomock.Any(), jobID).
			Return(&model.ProgressUpdate{Job: &model.Job{ID: jobID, Status: model.JobStatusRunning, Total: 3, Done: 1}}, nil),
		f.repo.EXPECT().RecomputeProgress(gomock.Any(), jobID).
			Return(&model.ProgressUpdate{Job: &model.Job{ID: jobID, Status: model.JobStatusRunning, Total: 3, Done: 2}}, nil),
		completed,
	)
	f.notifier.EXPECT().Notify(gomock.Any(), finished).Times(1).After(completed)

	require.NoError(t, f.dispatcher(t).Run(ctx))

	require.Len(t, stored, 3)

	var first, last model.EligibilityVerdict
	require.NoError(t, json.Unmarshal(stored[1], &first))
	assert.True(t, first.Eligible)
	require.NoError(t, json.Unmarshal(stored[3], &last))
	assert.False(t, last.Eligible)

	var failed model.ItemErrorResult
	require.NoError(t, json.Unmarshal(stored[2], &failed))
	assert.Contains(t, failed.Error, "status 503")

	assert.Equal(t, []string{
		"claimed:success", "running:success", "done:success", "progress:noop",
		"claimed:success", "running:success", "done:error", "progress:noop",
		"claimed:success", "running:success", "done:success", "progress:success",
	}, f.sink.transitions())
}

func TestRun_UndecodablePayloadStoresErrorResult(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := newItem([]byte(`{"naics": 541511`))

	f.claimOnce(item, cancel)
	f.repo.EXPECT().MarkRunning(gomock.Any(), int64(7)).Return(nil)

	var stored []byte
	f.repo.EXPECT().MarkDone(gomock.Any(), int64(7), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result []byte) error {
			stored = result
			return nil
		})
	f.repo.EXPECT().RecomputeProgress(gomock.Any(), item.JobID).
		Return(&model.ProgressUpdate{Job: &model.Job{ID: item.JobID, Total: 1, Done: 1}, Completed: true}, nil)
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	require.NoError(t, f.dispatcher(t).Run(ctx))

	var got model.ItemErrorResult
	require.NoError(t, json.Unmarshal(stored, &got))
	assert.Contains(t, got.Error, "decode payload")
}

func TestRun_RetriesFailedStoreWrite(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := newItem(testutil.NewEligibilityRequest().JSON())

	f.claimOnce(item, cancel)
	f.repo.EXPECT().MarkRunning(gomock.Any(), int64(7)).Return(nil)
	f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&model.EligibilityVerdict{}, nil)
	gomock.InOrder(
		f.repo.EXPECT().MarkDone(gomock.Any(), int64(7), gomock.Any()).Return(errors.New("connection reset")),
		f.repo.EXPECT().MarkDone(gomock.Any(), int64(7), gomock.Any()).Return(errors.New("connection reset")),
		f.repo.EXPECT().MarkDone(gomock.Any(), int64(7), gomock.Any()).Return(nil),
	)
	f.repo.EXPECT().RecomputeProgress(gomock.Any(), item.JobID).
		Return(&model.ProgressUpdate{Job: &model.Job{ID: item.JobID, Total: 3, Done: 1}}, nil)

	require.NoError(t, f.dispatcher(t).Run(ctx))
	assert.Contains(t, f.sink.transitions(), "done:success")
}

func TestRun_SkipsItemThatIsNoLongerClaimable(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := newItem(testutil.NewEligibilityRequest().JSON())

	f.claimOnce(item, cancel)
	f.repo.EXPECT().MarkRunning(gomock.Any(), int64(7)).Return(apperrors.Conflict("item 7 is done"))

	require.NoError(t, f.dispatcher(t).Run(ctx))
	assert.Equal(t, []string{"claimed:success", "running:noop"}, f.sink.transitions())
}

func TestRun_ClaimFailuresBackOffAndContinue(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(nil, errors.New("database unavailable")),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(nil, errors.New("database unavailable")),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(nil, model.ErrNoItemsAvailable),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).DoAndReturn(func(context.Context) (*model.JobItem, error) {
			cancel()
			return nil, context.Canceled
		}),
	)

	require.NoError(t, f.dispatcher(t).Run(ctx))
	assert.Equal(t, []string{"claimed:error", "claimed:error"}, f.sink.transitions())
}

func TestRun_ShutdownDuringEvaluationLeavesItemRunning(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := newItem(testutil.NewEligibilityRequest().JSON())

	f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(item, nil)
	f.repo.EXPECT().MarkRunning(gomock.Any(), int64(7)).Return(nil)
	f.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *model.EligibilityRequest) (*model.EligibilityVerdict, error) {
			cancel()
			return nil, ctx.Err()
		})

	require.NoError(t, f.dispatcher(t).Run(ctx))
}

func TestRun_DeadlineReturnsError(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(nil, model.ErrNoItemsAvailable).AnyTimes()

	err := f.dispatcher(t).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type chanNotifier struct {
	ch         chan struct{}
	subscribed bool
	unsubbed   bool
}

func (n *chanNotifier) Subscribe() (func(), <-chan struct{}) {
	n.subscribed = true
	return func() { n.unsubbed = true }, n.ch
}

func (n *chanNotifier) StopAll() {}

func TestRun_WakeSignalShortCircuitsPolling(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := &chanNotifier{ch: make(chan struct{}, 1)}
	wake.ch <- struct{}{}

	d, err := New(Options{
		Repo:      f.repo,
		Evaluator: f.evaluator,
		Wake:      wake,
		Config:    config.DispatcherConfig{PollInterval: time.Hour, MaxBackoff: time.Hour},
	})
	require.NoError(t, err)

	gomock.InOrder(
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(nil, model.ErrNoItemsAvailable),
		f.repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).DoAndReturn(func(context.Context) (*model.JobItem, error) {
			cancel()
			return nil, context.Canceled
		}),
	)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not wake before the poll interval")
	}
	assert.True(t, wake.subscribed)
	assert.True(t, wake.unsubbed)
}

func TestIdle_ReportsClosedWakeChannel(t *testing.T) {
	d := &Dispatcher{}
	ch := make(chan struct{})
	close(ch)

	assert.True(t, d.idle(context.Background(), time.Hour, ch))
	assert.False(t, d.idle(context.Background(), time.Millisecond, nil))
}

func TestBackoff_DoublesUpToCap(t *testing.T) {
	d := &Dispatcher{cfg: config.DispatcherConfig{PollInterval: 100 * time.Millisecond, MaxBackoff: time.Second}}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{failures: 1, want: 100 * time.Millisecond},
		{failures: 2, want: 200 * time.Millisecond},
		{failures: 3, want: 400 * time.Millisecond},
		{failures: 4, want: 800 * time.Millisecond},
		{failures: 5, want: time.Second},
		{failures: 50, want: time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.backoff(tt.failures), "failures=%d", tt.failures)
	}
}
