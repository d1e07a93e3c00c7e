// internal/ingest/ingest.go
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/store"
)

// Result lists what one ingestion wrote and what it could not.
type Result struct {
	Written []model.Snapshot
	Failed  []*custom_errors.StoreWriteFailure
}

// Ingestor turns discovered candidates into persisted snapshots.
type Ingestor struct {
	store  store.Store
	logger *slog.Logger
}

func NewIngestor(s store.Store, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: s, logger: logger}
}

// Ingest writes one snapshot per distinct repository, all stamped with capturedAt.
// Writes are best effort: a failed row is reported in Result.Failed and the rest
// proceed. It fails outright only when nothing could be written.
func (i *Ingestor) Ingest(ctx context.Context, runID string, candidates []model.Candidate, capturedAt time.Time) (*Result, error) {
	capturedAt = model.NormalizeTime(capturedAt)
	logger := i.logger.With("run_id", runID)
	res := &Result{}

	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		name := strings.TrimSpace(cand.RepoName)
		if name == "" {
			logger.Warn("Dropping candidate without a repository name")
			continue
		}
		if _, dup := seen[name]; dup {
			logger.Debug("Skipping duplicate candidate", "repo", name)
			continue
		}
		seen[name] = struct{}{}

		snap := model.NewSnapshot(cand, runID, capturedAt)
		if err := i.store.InsertSnapshot(ctx, snap); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			failure := &custom_errors.StoreWriteFailure{RepoName: name, Err: err}
			logger.Error("Failed to write snapshot", "repo", name, "error", err)
			res.Failed = append(res.Failed, failure)
			continue
		}
		res.Written = append(res.Written, snap)
	}

	if len(res.Written) == 0 && len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: all %d snapshot writes failed: %v", custom_errors.ErrStoreUnavailable, len(res.Failed), res.Failed[0])
	}

	logger.Info("Ingested snapshots", "written", len(res.Written), "failed", len(res.Failed))
	return res, nil
}
