// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"repo-growth-tracker/internal/database"
	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/model"
)

// runLockKey identifies the tracker's session-level advisory lock.
const runLockKey int64 = 0x7265706f74726b // "repotrk"

// PostgresStore keeps snapshots in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	q      database.Querier
	logger *slog.Logger
}

// NewPostgresStore wraps an open pool. The schema must already be migrated.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		q:      database.New(pool),
		logger: logger,
	}
}

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap model.Snapshot) error {
	err := s.q.InsertSnapshot(ctx, database.InsertSnapshotParams{
		RepoName:       snap.RepoName,
		CapturedAt:     model.NormalizeTime(snap.CapturedAt),
		RunID:          snap.RunID,
		Stars:          int32(snap.Stars),
		Description:    snap.Description,
		Language:       snap.Language,
		Topics:         nonNilTopics(snap.Topics),
		RepoCreatedAt:  snap.CreatedAt.UTC(),
		Sponsors:       int32(snap.Sponsors),
		Contributors:   int32(snap.Contributors),
		Commits7d:      int32(snap.Commits7d),
		IssuesClosed7d: int32(snap.IssuesClosed7d),
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s at %s", ErrDuplicateSnapshot, snap.RepoName, snap.CapturedAt.Format(time.RFC3339Nano))
	}
	return err
}

func (s *PostgresStore) LastUpdateTime(ctx context.Context) (time.Time, error) {
	last, err := s.q.GetLastCapturedAt(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return Never, nil
	}
	if err != nil {
		return Never, err
	}
	return last.UTC(), nil
}

func (s *PostgresStore) RowCount(ctx context.Context) (int64, error) {
	return s.q.CountSnapshots(ctx)
}

func (s *PostgresStore) NearestSnapshotBefore(ctx context.Context, repoName string, ref time.Time, w model.Window) (*model.Snapshot, error) {
	earliest, latest := w.Bounds(ref)
	rows, err := s.q.ListSnapshotsInRange(ctx, database.ListSnapshotsInRangeParams{
		RepoName:    repoName,
		WindowStart: earliest,
		WindowEnd:   latest,
	})
	if err != nil {
		return nil, err
	}
	best := model.Nearest(fromDatabaseRows(rows), ref, w)
	if best == nil {
		return nil, nil
	}
	snap := *best
	return &snap, nil
}

func (s *PostgresStore) LatestSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.q.ListLatestSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return fromDatabaseRows(rows), nil
}

func (s *PostgresStore) History(ctx context.Context, repoName string, limit int) ([]model.Snapshot, error) {
	rows, err := s.q.ListSnapshotHistory(ctx, database.ListSnapshotHistoryParams{
		RepoName: repoName,
		Limit:    int32(limit),
	})
	if err != nil {
		return nil, err
	}
	return fromDatabaseRows(rows), nil
}

// AcquireRunLock takes a session advisory lock on a dedicated connection, which is
// held until release is called.
func (s *PostgresStore) AcquireRunLock(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}

	q := database.New(conn)
	ok, err := q.TryAdvisoryLock(ctx, runLockKey)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}
	if !ok {
		conn.Release()
		return nil, custom_errors.ErrRunInProgress
	}

	return func() {
		// The lock outlives a cancelled run context, so release it on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := q.ReleaseAdvisoryLock(releaseCtx, runLockKey); err != nil {
			s.logger.Warn("Failed to release run lock", "error", err)
		}
		conn.Release()
	}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}

func fromDatabaseRows(rows []database.RepositorySnapshot) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Snapshot{
			RepoName:       r.RepoName,
			CapturedAt:     r.CapturedAt.UTC(),
			RunID:          r.RunID,
			Stars:          int(r.Stars),
			Description:    r.Description,
			Language:       r.Language,
			Topics:         nonNilTopics(r.Topics),
			CreatedAt:      r.RepoCreatedAt.UTC(),
			Sponsors:       int(r.Sponsors),
			Contributors:   int(r.Contributors),
			Commits7d:      int(r.Commits7d),
			IssuesClosed7d: int(r.IssuesClosed7d),
		})
	}
	return out
}

func nonNilTopics(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}
