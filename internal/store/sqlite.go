// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/model"
)

const (
	runLockName = "tracker"
	// A lock older than this is assumed to belong to a crashed run.
	staleLockAfter = 6 * time.Hour
)

// SQLiteStore keeps snapshots in a local SQLite file.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

type sqliteSnapshotRow struct {
	RepoName       string         `db:"repo_name"`
	CapturedAt     int64          `db:"captured_at"`
	RunID          string         `db:"run_id"`
	Stars          int            `db:"stars"`
	Description    sql.NullString `db:"description"`
	Language       sql.NullString `db:"language"`
	Topics         string         `db:"topics"`
	RepoCreatedAt  int64          `db:"repo_created_at"`
	Sponsors       int            `db:"sponsors"`
	Contributors   int            `db:"contributors"`
	Commits7d      int            `db:"commits_7d"`
	IssuesClosed7d int            `db:"issues_closed_7d"`
}

const sqliteSnapshotColumns = `repo_name, captured_at, run_id, stars, description, language, topics,
	repo_created_at, sponsors, contributors, commits_7d, issues_closed_7d`

// OpenSQLiteStore migrates and opens the database file at path.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	if err := RunMigrations(DriverSQLite, path); err != nil {
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, snap model.Snapshot) error {
	topics, err := json.Marshal(nonNilTopics(snap.Topics))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO repository_snapshots (`+sqliteSnapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.RepoName, toMicros(snap.CapturedAt), snap.RunID, snap.Stars,
		toNullString(snap.Description), toNullString(snap.Language), string(topics),
		toMicros(snap.CreatedAt), snap.Sponsors, snap.Contributors,
		snap.Commits7d, snap.IssuesClosed7d)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s at %s", ErrDuplicateSnapshot, snap.RepoName, snap.CapturedAt.Format(time.RFC3339Nano))
	}
	return err
}

func (s *SQLiteStore) LastUpdateTime(ctx context.Context) (time.Time, error) {
	var last sql.NullInt64
	if err := s.db.GetContext(ctx, &last, `SELECT max(captured_at) FROM repository_snapshots`); err != nil {
		return Never, err
	}
	if !last.Valid {
		return Never, nil
	}
	return fromMicros(last.Int64), nil
}

func (s *SQLiteStore) RowCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM repository_snapshots`)
	return n, err
}

func (s *SQLiteStore) NearestSnapshotBefore(ctx context.Context, repoName string, ref time.Time, w model.Window) (*model.Snapshot, error) {
	earliest, latest := w.Bounds(ref)
	var rows []sqliteSnapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+sqliteSnapshotColumns+`
		FROM repository_snapshots
		WHERE repo_name = ? AND captured_at BETWEEN ? AND ?
		ORDER BY captured_at
	`, repoName, toMicros(earliest), toMicros(latest))
	if err != nil {
		return nil, err
	}

	snaps, err := fromSQLiteRows(rows)
	if err != nil {
		return nil, err
	}
	best := model.Nearest(snaps, ref, w)
	if best == nil {
		return nil, nil
	}
	snap := *best
	return &snap, nil
}

func (s *SQLiteStore) LatestSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	var rows []sqliteSnapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+sqliteSnapshotColumns+`
		FROM repository_snapshots
		WHERE captured_at = (SELECT max(captured_at) FROM repository_snapshots)
		ORDER BY repo_name
	`)
	if err != nil {
		return nil, err
	}
	return fromSQLiteRows(rows)
}

func (s *SQLiteStore) History(ctx context.Context, repoName string, limit int) ([]model.Snapshot, error) {
	var rows []sqliteSnapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+sqliteSnapshotColumns+`
		FROM repository_snapshots
		WHERE repo_name = ?
		ORDER BY captured_at DESC
		LIMIT ?
	`, repoName, limit)
	if err != nil {
		return nil, err
	}
	return fromSQLiteRows(rows)
}

// AcquireRunLock claims the run_locks row. A lock left behind by a crashed run is
// taken over once it is older than staleLockAfter.
func (s *SQLiteStore) AcquireRunLock(ctx context.Context) (func(), error) {
	holder := uuid.NewString()
	now := s.now()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM run_locks WHERE name = ? AND acquired_at < ?`,
		runLockName, toMicros(now.Add(-staleLockAfter))); err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO run_locks (name, holder, acquired_at) VALUES (?, ?, ?)`,
		runLockName, holder, toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return nil, custom_errors.ErrRunInProgress
	}

	return func() {
		if _, err := s.db.Exec(`DELETE FROM run_locks WHERE name = ? AND holder = ?`, runLockName, holder); err != nil {
			s.logger.Warn("Failed to release run lock", "error", err)
		}
	}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func fromSQLiteRows(rows []sqliteSnapshotRow) ([]model.Snapshot, error) {
	out := make([]model.Snapshot, 0, len(rows))
	for _, r := range rows {
		var topics []string
		if err := json.Unmarshal([]byte(r.Topics), &topics); err != nil {
			return nil, fmt.Errorf("decode topics of %s: %w", r.RepoName, err)
		}
		out = append(out, model.Snapshot{
			RepoName:       r.RepoName,
			CapturedAt:     fromMicros(r.CapturedAt),
			RunID:          r.RunID,
			Stars:          r.Stars,
			Description:    fromNullString(r.Description),
			Language:       fromNullString(r.Language),
			Topics:         nonNilTopics(topics),
			CreatedAt:      fromMicros(r.RepoCreatedAt),
			Sponsors:       r.Sponsors,
			Contributors:   r.Contributors,
			Commits7d:      r.Commits7d,
			IssuesClosed7d: r.IssuesClosed7d,
		})
	}
	return out, nil
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{
		String: *s,
		Valid:  *s != "",
	}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
