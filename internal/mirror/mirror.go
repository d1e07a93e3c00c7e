// internal/mirror/mirror.go
package mirror

import (
	"context"
	"log/slog"
	"time"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/retry"
)

const (
	DriverNone     = "none"
	DriverAirtable = "airtable"
	DriverPostgres = "postgres"
)

// Mirror is an external table holding the latest state of each repository,
// keyed by repo_name. Upsert must be idempotent.
type Mirror interface {
	Name() string
	// MaxBatchSize is the most rows one Upsert call accepts.
	MaxBatchSize() int
	Upsert(ctx context.Context, rows []model.MirrorRow) error
}

// Result summarises one synchronisation.
type Result struct {
	Synced   int
	Failures []*custom_errors.MirrorSyncFailure
}

// Synchronizer pushes growth records into a Mirror in retried batches.
type Synchronizer struct {
	mirror    Mirror
	batchSize int
	policy    retry.Policy
	logger    *slog.Logger
}

func NewSynchronizer(m Mirror, batchSize int, policy retry.Policy, logger *slog.Logger) *Synchronizer {
	if batchSize <= 0 || batchSize > m.MaxBatchSize() {
		batchSize = m.MaxBatchSize()
	}
	return &Synchronizer{
		mirror:    m,
		batchSize: batchSize,
		policy:    policy,
		logger:    logger.With("mirror", m.Name()),
	}
}

// Sync upserts every record. A batch that keeps failing is recorded in the
// result and the remaining batches still run.
func (s *Synchronizer) Sync(ctx context.Context, records []model.GrowthRecord) Result {
	rows := collapse(records)
	var res Result

	for i, batch := range chunk(rows, s.batchSize) {
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			return s.mirror.Upsert(ctx, batch)
		}, func(err error, attempt int, wait time.Duration) {
			s.logger.Warn("Mirror batch failed, retrying", "batch", i, "attempt", attempt, "wait", wait, "error", err)
		})
		if err != nil {
			failure := &custom_errors.MirrorSyncFailure{
				Mirror:    s.mirror.Name(),
				Batch:     i,
				RepoNames: repoNames(batch),
				Err:       err,
			}
			s.logger.Error("Mirror batch failed", "batch", i, "rows", len(batch), "error", err)
			res.Failures = append(res.Failures, failure)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		res.Synced += len(batch)
	}

	s.logger.Info("Mirror sync finished", "synced", res.Synced, "failed_batches", len(res.Failures))
	return res
}

// collapse converts records to rows, keeping the last record for each repository
// at the position of its first occurrence.
func collapse(records []model.GrowthRecord) []model.MirrorRow {
	index := make(map[string]int, len(records))
	rows := make([]model.MirrorRow, 0, len(records))
	for _, rec := range records {
		row := rec.ToMirrorRow()
		if i, ok := index[row.RepoName]; ok {
			rows[i] = row
			continue
		}
		index[row.RepoName] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func chunk(rows []model.MirrorRow, size int) [][]model.MirrorRow {
	var out [][]model.MirrorRow
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

func repoNames(rows []model.MirrorRow) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.RepoName
	}
	return names
}
