// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is returned when the snapshot store cannot be used at all.
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
	// ErrRunInProgress is returned when another run holds the run lock.
	ErrRunInProgress = errors.New("another tracking run is in progress")
	// ErrNoCandidates is returned when discovery produced nothing to track.
	ErrNoCandidates = errors.New("discovery returned no candidates")
)

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// DiscoveryUnavailable means the upstream index could not be reached after retries.
type DiscoveryUnavailable struct {
	Page int
	Err  error
}

func (e *DiscoveryUnavailable) Error() string {
	return fmt.Sprintf("discovery unavailable at page %d: %v", e.Page, e.Err)
}

func (e *DiscoveryUnavailable) Unwrap() error { return e.Err }

// RateLimitExceeded means upstream throttling outlasted every retry.
// Candidates yielded before it are still usable as a partial result.
type RateLimitExceeded struct {
	Page     int
	Attempts int
	Err      error
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded at page %d after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *RateLimitExceeded) Unwrap() error { return e.Err }

// StoreWriteFailure records a snapshot that failed to persist.
type StoreWriteFailure struct {
	RepoName string
	Err      error
}

func (e *StoreWriteFailure) Error() string {
	return fmt.Sprintf("failed to store snapshot for %s: %v", e.RepoName, e.Err)
}

func (e *StoreWriteFailure) Unwrap() error { return e.Err }

// MirrorSyncFailure records a mirror batch that failed after retries.
type MirrorSyncFailure struct {
	Mirror    string
	Batch     int
	RepoNames []string
	Err       error
}

func (e *MirrorSyncFailure) Error() string {
	return fmt.Sprintf("failed to sync batch %d (%d rows) to %s mirror: %v", e.Batch, len(e.RepoNames), e.Mirror, e.Err)
}

func (e *MirrorSyncFailure) Unwrap() error { return e.Err }
