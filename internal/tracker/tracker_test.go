// internal/tracker/tracker_test.go
package tracker

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/mirror"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/ranking"
	"repo-growth-tracker/internal/store"
)

// MockDiscoverer is a mock of the Discoverer interface. The mocked call returns
// the candidates to yield and an optional terminal error.
type MockDiscoverer struct {
	mock.Mock
}

func (m *MockDiscoverer) Discover(ctx context.Context, query string, maxResults int) iter.Seq2[model.Candidate, error] {
	args := m.Called(ctx, query, maxResults)
	cands := args.Get(0).([]model.Candidate)
	err := args.Error(1)
	return func(yield func(model.Candidate, error) bool) {
		for _, c := range cands {
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield(model.Candidate{}, err)
		}
	}
}

// MockSyncer is a mock of the MirrorSyncer interface.
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, records []model.GrowthRecord) mirror.Result {
	args := m.Called(ctx, records)
	return args.Get(0).(mirror.Result)
}

var t0 = time.Date(2025, 4, 17, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testOptions() Options {
	return Options{
		SearchQuery:  "topic:ai",
		MaxResults:   100,
		RunTimeout:   time.Minute,
		DailyWindow:  model.DailyWindow,
		WeeklyWindow: model.WeeklyWindow,
		TopN:         10,
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTracker(s store.Store, d Discoverer, m MirrorSyncer, at time.Time) *Tracker {
	tr := NewTracker(s, d, m, testOptions(), testLogger())
	tr.now = func() time.Time { return at }
	return tr
}

func TestTracker_Run_TwoDays(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	day1 := new(MockDiscoverer)
	day1.On("Discover", mock.Anything, "topic:ai", 100).Return([]model.Candidate{
		{RepoName: "alice/toolkit", Stars: 100},
	}, nil).Once()
	first, err := newTestTracker(s, day1, nil, t0.Add(-25*time.Hour)).Run(ctx, ranking.Daily)
	require.NoError(t, err)
	assert.True(t, first.Summary.PrevUpdateTime.IsZero())
	assert.False(t, first.Summary.MirrorEnabled)

	day2 := new(MockDiscoverer)
	day2.On("Discover", mock.Anything, "topic:ai", 100).Return([]model.Candidate{
		{RepoName: "alice/toolkit", Stars: 150},
		{RepoName: "bob/newlib", Stars: 10},
		{RepoName: "alice/toolkit", Stars: 150},
	}, nil).Once()
	syncer := new(MockSyncer)
	syncer.On("Sync", mock.Anything, mock.Anything).Return(mirror.Result{Synced: 2}).Once()

	res, err := newTestTracker(s, day2, syncer, t0).Run(ctx, ranking.Daily)

	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	alice, bob := res.Records[0], res.Records[1]
	assert.Equal(t, "alice/toolkit", alice.RepoName)
	assert.Equal(t, 50, alice.DailyDiff)
	assert.InDelta(t, 50.0, alice.DailyPct, 1e-9)
	assert.Equal(t, "bob/newlib", bob.RepoName)
	assert.Equal(t, 0, bob.DailyDiff)
	assert.Equal(t, 0, bob.WeeklyDiff)

	sum := res.Summary
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, sum.Candidates)
	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, 1, sum.NoDaily)
	assert.Equal(t, 2, sum.NoWeekly)
	assert.Equal(t, int64(3), sum.RowCount)
	assert.True(t, sum.PrevUpdateTime.Equal(t0.Add(-25*time.Hour)))
	assert.True(t, sum.NewUpdateTime.Equal(t0))
	assert.True(t, sum.MirrorEnabled)
	assert.Equal(t, 2, sum.MirrorSynced)
	assert.False(t, sum.Degraded())
	require.NotEmpty(t, sum.Top)
	assert.Equal(t, "alice/toolkit", sum.Top[0].RepoName)
	syncer.AssertExpectations(t)
}

func TestTracker_Run_ErrorPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps partial results when throttled", func(t *testing.T) {
		s := newTestStore(t)
		d := new(MockDiscoverer)
		d.On("Discover", mock.Anything, mock.Anything, mock.Anything).Return(
			[]model.Candidate{{RepoName: "alice/toolkit", Stars: 150}},
			&custom_errors.RateLimitExceeded{Page: 2, Attempts: 5, Err: errors.New("403")},
		).Once()

		res, err := newTestTracker(s, d, nil, t0).Run(ctx, ranking.Daily)

		require.NoError(t, err)
		assert.True(t, res.Summary.Partial)
		assert.True(t, res.Summary.Degraded())
		assert.Equal(t, 1, res.Summary.Written)
	})

	t.Run("fails when discovery is unavailable", func(t *testing.T) {
		s := newTestStore(t)
		d := new(MockDiscoverer)
		d.On("Discover", mock.Anything, mock.Anything, mock.Anything).Return(
			[]model.Candidate{{RepoName: "alice/toolkit"}},
			&custom_errors.DiscoveryUnavailable{Page: 2, Err: errors.New("503")},
		).Once()

		_, err := newTestTracker(s, d, nil, t0).Run(ctx, ranking.Daily)

		var unavailable *custom_errors.DiscoveryUnavailable
		require.ErrorAs(t, err, &unavailable)
		n, err := s.RowCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("fails when nothing was discovered", func(t *testing.T) {
		s := newTestStore(t)
		d := new(MockDiscoverer)
		d.On("Discover", mock.Anything, mock.Anything, mock.Anything).Return([]model.Candidate{}, nil).Once()

		_, err := newTestTracker(s, d, nil, t0).Run(ctx, ranking.Daily)

		assert.ErrorIs(t, err, custom_errors.ErrNoCandidates)
	})

	t.Run("refuses to run concurrently", func(t *testing.T) {
		s := newTestStore(t)
		release, err := s.AcquireRunLock(ctx)
		require.NoError(t, err)
		defer release()
		d := new(MockDiscoverer)

		_, err = newTestTracker(s, d, nil, t0).Run(ctx, ranking.Daily)

		assert.ErrorIs(t, err, custom_errors.ErrRunInProgress)
		d.AssertNotCalled(t, "Discover", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("mirror failures degrade but do not fail the run", func(t *testing.T) {
		s := newTestStore(t)
		d := new(MockDiscoverer)
		d.On("Discover", mock.Anything, mock.Anything, mock.Anything).Return([]model.Candidate{{RepoName: "dave/lib", Stars: 5}}, nil).Once()
		syncer := new(MockSyncer)
		syncer.On("Sync", mock.Anything, mock.Anything).Return(mirror.Result{
			Failures: []*custom_errors.MirrorSyncFailure{{Mirror: "airtable", RepoNames: []string{"dave/lib"}, Err: errors.New("502")}},
		}).Once()

		res, err := newTestTracker(s, d, syncer, t0).Run(ctx, ranking.Weekly)

		require.NoError(t, err)
		assert.True(t, res.Summary.Degraded())
		assert.Len(t, res.Summary.MirrorFailures, 1)
		assert.Equal(t, int64(1), res.Summary.RowCount)
	})

	t.Run("lock is released after a run", func(t *testing.T) {
		s := newTestStore(t)
		d := new(MockDiscoverer)
		d.On("Discover", mock.Anything, mock.Anything, mock.Anything).Return([]model.Candidate{}, nil)

		_, _ = newTestTracker(s, d, nil, t0).Run(ctx, ranking.Daily)

		release, err := s.AcquireRunLock(ctx)
		require.NoError(t, err)
		release()
	})
}

func TestTracker_Start(t *testing.T) {
	s := newTestStore(t)
	d := new(MockDiscoverer)
	ran := make(chan struct{}, 1)
	d.On("Discover", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.Candidate{{RepoName: "alice/toolkit", Stars: 1}}, nil).
		Run(func(mock.Arguments) {
			select {
			case ran <- struct{}{}:
			default:
			}
		})
	tr := newTestTracker(s, d, nil, t0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tr.Start(ctx, time.Hour, ranking.Daily)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not start")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop after cancellation")
	}
}

func TestTracker_Start_NonPositiveInterval(t *testing.T) {
	s := newTestStore(t)
	d := new(MockDiscoverer)
	d.On("Discover", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.Candidate{{RepoName: "alice/toolkit", Stars: 1}}, nil).Once()
	tr := newTestTracker(s, d, nil, t0)

	done := make(chan struct{})
	go func() {
		tr.Start(context.Background(), 0, ranking.Daily)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tracker kept running with a zero interval")
	}
	d.AssertExpectations(t)

	count, err := s.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
