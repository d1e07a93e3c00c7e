// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"repo-growth-tracker/internal/model"
)

// Never is the LastUpdateTime of an empty store.
var Never = time.Time{}

// ErrDuplicateSnapshot is returned when (repo_name, captured_at) already exists.
var ErrDuplicateSnapshot = errors.New("snapshot already recorded for this repository and capture time")

// Store is the durable, append-only history of repository snapshots.
type Store interface {
	InsertSnapshot(ctx context.Context, snap model.Snapshot) error
	// LastUpdateTime returns the most recent capture time, or Never when the store is empty.
	LastUpdateTime(ctx context.Context) (time.Time, error)
	RowCount(ctx context.Context) (int64, error)
	// NearestSnapshotBefore returns the snapshot of repoName that best matches the
	// lookback window ending at ref, or nil when none qualifies.
	NearestSnapshotBefore(ctx context.Context, repoName string, ref time.Time, w model.Window) (*model.Snapshot, error)
	// LatestSnapshots returns every snapshot taken at the most recent capture time.
	LatestSnapshots(ctx context.Context) ([]model.Snapshot, error)
	// History returns up to limit snapshots of repoName, newest first.
	History(ctx context.Context, repoName string, limit int) ([]model.Snapshot, error)
	// AcquireRunLock enforces a single writer. It returns errors.ErrRunInProgress
	// when another run holds the lock.
	AcquireRunLock(ctx context.Context) (release func(), err error)
	Ping(ctx context.Context) error
	Close() error
}
