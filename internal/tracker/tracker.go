// internal/tracker/tracker.go
package tracker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/github"
	"repo-growth-tracker/internal/growth"
	"repo-growth-tracker/internal/ingest"
	"repo-growth-tracker/internal/mirror"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/ranking"
	"repo-growth-tracker/internal/store"
)

// Discoverer yields the candidate repositories for one run.
type Discoverer interface {
	Discover(ctx context.Context, query string, maxResults int) iter.Seq2[model.Candidate, error]
}

// MirrorSyncer pushes growth records to the external mirror.
type MirrorSyncer interface {
	Sync(ctx context.Context, records []model.GrowthRecord) mirror.Result
}

type Options struct {
	SearchQuery    string
	MaxResults     int
	RunTimeout     time.Duration
	DailyWindow    model.Window
	WeeklyWindow   model.Window
	TopN           int
	ExcludedOwners []string
}

// Summary describes how a run went. A run can succeed and still be degraded.
type Summary struct {
	Mode           ranking.Period                     `json:"mode"`
	SearchTerms    string                             `json:"search_terms"`
	StartedAt      time.Time                          `json:"started_at"`
	FinishedAt     time.Time                          `json:"finished_at"`
	Candidates     int                                `json:"candidates"`
	Partial        bool                               `json:"partial"`
	DiscoveryError string                             `json:"discovery_error,omitempty"`
	Written        int                                `json:"written"`
	StoreFailures  []*custom_errors.StoreWriteFailure `json:"-"`
	LookupFailures int                                `json:"lookup_failures"`
	NoDaily        int                                `json:"repos_without_daily_history"`
	NoWeekly       int                                `json:"repos_without_weekly_history"`
	MirrorEnabled  bool                               `json:"mirror_enabled"`
	MirrorSynced   int                                `json:"mirror_synced"`
	MirrorFailures []*custom_errors.MirrorSyncFailure `json:"-"`
	PrevUpdateTime time.Time                          `json:"prev_db_update_time"`
	NewUpdateTime  time.Time                          `json:"new_db_update_time"`
	RowCount       int64                              `json:"row_count"`
	Top            []model.GrowthRecord               `json:"top"`
}

// Degraded reports whether anything short of a complete run happened.
func (s Summary) Degraded() bool {
	return s.Partial || len(s.StoreFailures) > 0 || s.LookupFailures > 0 || len(s.MirrorFailures) > 0
}

type Result struct {
	RunID   string               `json:"run_id"`
	Records []model.GrowthRecord `json:"records"`
	Summary Summary              `json:"summary"`
}

// Tracker orchestrates one discover, ingest, delta and mirror pass.
type Tracker struct {
	store      store.Store
	discoverer Discoverer
	ingestor   *ingest.Ingestor
	calculator *growth.Calculator
	mirror     MirrorSyncer
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewTracker wires a tracker. A nil mirror disables mirror sync.
func NewTracker(s store.Store, d Discoverer, m MirrorSyncer, opts Options, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:      s,
		discoverer: d,
		ingestor:   ingest.NewIngestor(s, logger),
		calculator: growth.NewCalculator(s, opts.DailyWindow, opts.WeeklyWindow, logger),
		mirror:     m,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs immediately and then on every interval tick until ctx is done.
// Runs never overlap: the next tick waits for the current run.
// A non-positive interval performs the initial run only.
func (t *Tracker) Start(ctx context.Context, interval time.Duration, mode ranking.Period) {
	t.logger.Info("Starting tracker", "interval", interval.String(), "mode", mode)

	t.runCycle(ctx, mode) // Initial run

	if interval <= 0 {
		t.logger.Warn("Non-positive schedule interval, not rescheduling", "interval", interval.String())
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.runCycle(ctx, mode)
		case <-ctx.Done():
			t.logger.Info("Tracker shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (t *Tracker) runCycle(ctx context.Context, mode ranking.Period) {
	if _, err := t.Run(ctx, mode); err != nil && !errors.Is(err, context.Canceled) {
		t.logger.Error("Tracking run failed", "error", err)
	}
}

// Run performs one complete tracking run.
func (t *Tracker) Run(ctx context.Context, mode ranking.Period) (*Result, error) {
	if t.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	logger := t.logger.With("run_id", runID)
	summary := Summary{Mode: mode, SearchTerms: t.opts.SearchQuery, StartedAt: t.now().UTC()}

	if err := t.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}
	release, err := t.store.AcquireRunLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	summary.PrevUpdateTime, err = t.store.LastUpdateTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrStoreUnavailable, err)
	}
	logger.Info("Starting tracking run", "query", t.opts.SearchQuery, "max_results", t.opts.MaxResults, "prev_db_update_time", summary.PrevUpdateTime)

	candidates, err := github.Collect(t.discoverer.Discover(ctx, t.opts.SearchQuery, t.opts.MaxResults))
	if err != nil {
		var limited *custom_errors.RateLimitExceeded
		if !errors.As(err, &limited) {
			return nil, err
		}
		logger.Warn("Discovery throttled, continuing with partial results", "candidates", len(candidates), "error", err)
		summary.Partial = true
		summary.DiscoveryError = err.Error()
	}
	if len(candidates) == 0 {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", custom_errors.ErrNoCandidates, err)
		}
		return nil, custom_errors.ErrNoCandidates
	}
	summary.Candidates = len(candidates)

	ingested, err := t.ingestor.Ingest(ctx, runID, candidates, t.now())
	if err != nil {
		return nil, err
	}
	summary.Written = len(ingested.Written)
	summary.StoreFailures = ingested.Failed

	records, stats := t.calculator.Calculate(ctx, ingested.Written)
	summary.LookupFailures = stats.LookupFailures
	summary.NoDaily = stats.NoDaily
	summary.NoWeekly = stats.NoWeekly

	if t.mirror != nil {
		synced := t.mirror.Sync(ctx, records)
		summary.MirrorEnabled = true
		summary.MirrorSynced = synced.Synced
		summary.MirrorFailures = synced.Failures
	}

	if summary.NewUpdateTime, err = t.store.LastUpdateTime(ctx); err != nil {
		logger.Warn("Failed to read new update time", "error", err)
	}
	if summary.RowCount, err = t.store.RowCount(ctx); err != nil {
		logger.Warn("Failed to count snapshots", "error", err)
	}

	summary.Top = ranking.Top(records, ranking.Options{
		By:             mode,
		N:              t.opts.TopN,
		ExcludedOwners: t.opts.ExcludedOwners,
	})
	summary.FinishedAt = t.now().UTC()

	logger.Info("Tracking run finished",
		"degraded", summary.Degraded(),
		"candidates", summary.Candidates,
		"written", summary.Written,
		"store_failures", len(summary.StoreFailures),
		"without_daily", summary.NoDaily,
		"without_weekly", summary.NoWeekly,
		"mirror_synced", summary.MirrorSynced,
		"mirror_failures", len(summary.MirrorFailures),
		"row_count", summary.RowCount,
		"new_db_update_time", summary.NewUpdateTime)

	return &Result{RunID: runID, Records: records, Summary: summary}, nil
}
