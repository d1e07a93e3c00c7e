// internal/store/sqlite_test.go
package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/model"
)

// openTestStore creates a migrated SQLite store in a temp directory.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshotAt(repo string, stars int, at time.Time) model.Snapshot {
	return model.NewSnapshot(model.Candidate{RepoName: repo, Stars: stars}, "run", at)
}

func TestSQLiteStore_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.LastUpdateTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, Never, last)

	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	latest, err := s.LatestSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestSQLiteStore_InsertRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 17, 12, 0, 0, 987654321, time.UTC)

	desc := "A toolkit"
	lang := "Go"
	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := model.NewSnapshot(model.Candidate{
		RepoName:       "alice/toolkit",
		Stars:          150,
		Description:    &desc,
		Language:       &lang,
		Topics:         []string{"llm", "agents"},
		CreatedAt:      created,
		Contributors:   12,
		Commits7d:      30,
		IssuesClosed7d: 4,
	}, "run-1", now)
	require.NoError(t, s.InsertSnapshot(ctx, snap))

	history, err := s.History(ctx, "alice/toolkit", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, snap, history[0])

	last, err := s.LastUpdateTime(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(snap.CapturedAt))
}

func TestSQLiteStore_DuplicateSnapshotRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("carol/app", 5, now)))
	err := s.InsertSnapshot(ctx, snapshotAt("carol/app", 6, now))
	assert.ErrorIs(t, err, ErrDuplicateSnapshot)

	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteStore_NearestSnapshotBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ref := time.Date(2025, 4, 17, 12, 0, 0, 0, time.UTC)

	for _, h := range []int{2, 23, 25, 27, 30, 7 * 24} {
		require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("alice/toolkit", 100+h, ref.Add(-time.Duration(h)*time.Hour))))
	}
	require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("bob/newlib", 10, ref.Add(-24*time.Hour))))

	daily, err := s.NearestSnapshotBefore(ctx, "alice/toolkit", ref, model.DailyWindow)
	require.NoError(t, err)
	require.NotNil(t, daily)
	// 23h and 25h are equidistant from 24h; the earlier one wins.
	assert.Equal(t, 125, daily.Stars)

	weekly, err := s.NearestSnapshotBefore(ctx, "alice/toolkit", ref, model.WeeklyWindow)
	require.NoError(t, err)
	require.NotNil(t, weekly)
	assert.Equal(t, 100+7*24, weekly.Stars)

	none, err := s.NearestSnapshotBefore(ctx, "dave/lib", ref, model.DailyWindow)
	require.NoError(t, err)
	assert.Nil(t, none)

	// A row stamped after ref by a skewed clock is never a baseline.
	require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("erin/skew", 999, ref.Add(time.Hour))))
	skewed, err := s.NearestSnapshotBefore(ctx, "erin/skew", ref, model.DailyWindow)
	require.NoError(t, err)
	assert.Nil(t, skewed)
}

func TestSQLiteStore_LatestSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	earlier := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)
	later := earlier.Add(24 * time.Hour)

	require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("alice/toolkit", 100, earlier)))
	require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("alice/toolkit", 150, later)))
	require.NoError(t, s.InsertSnapshot(ctx, snapshotAt("bob/newlib", 10, later)))

	latest, err := s.LatestSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "alice/toolkit", latest[0].RepoName)
	assert.Equal(t, 150, latest[0].Stars)
	assert.Equal(t, "bob/newlib", latest[1].RepoName)
}

func TestSQLiteStore_RunLock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	release, err := s.AcquireRunLock(ctx)
	require.NoError(t, err)

	_, err = s.AcquireRunLock(ctx)
	assert.ErrorIs(t, err, custom_errors.ErrRunInProgress)

	release()

	release2, err := s.AcquireRunLock(ctx)
	require.NoError(t, err)
	release2()
}

func TestSQLiteStore_StaleRunLockIsTakenOver(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Now()

	s.now = func() time.Time { return start }
	_, err := s.AcquireRunLock(ctx)
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(staleLockAfter + time.Minute) }
	release, err := s.AcquireRunLock(ctx)
	require.NoError(t, err)
	release()
}
