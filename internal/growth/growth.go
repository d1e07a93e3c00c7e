// internal/growth/growth.go
package growth

import (
	"context"
	"log/slog"

	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/store"
)

// Stats counts the repositories that ended up without a usable baseline.
type Stats struct {
	LookupFailures int
	NoDaily        int
	NoWeekly       int
}

// Calculator derives star growth from the snapshot history.
type Calculator struct {
	store  store.Store
	daily  model.Window
	weekly model.Window
	logger *slog.Logger
}

func NewCalculator(s store.Store, daily, weekly model.Window, logger *slog.Logger) *Calculator {
	return &Calculator{store: s, daily: daily, weekly: weekly, logger: logger}
}

// Delta returns the star change against prior and the change as a percentage of
// prior. The percentage is 0 when prior is 0.
func Delta(current, prior int) (int, float64) {
	diff := current - prior
	if prior <= 0 {
		return diff, 0
	}
	return diff, float64(diff) / float64(prior) * 100
}

// Calculate produces one record per current snapshot, in input order. A failed
// baseline lookup is logged and treated as no baseline.
func (c *Calculator) Calculate(ctx context.Context, current []model.Snapshot) ([]model.GrowthRecord, Stats) {
	var stats Stats
	records := make([]model.GrowthRecord, 0, len(current))

	for _, snap := range current {
		rec := newRecord(snap)

		daily, ok := c.baseline(ctx, snap, c.daily, &stats)
		if ok {
			rec.HasDailyBaseline = true
			rec.DailyDiff, rec.DailyPct = Delta(snap.Stars, daily.Stars)
		} else {
			stats.NoDaily++
		}

		weekly, ok := c.baseline(ctx, snap, c.weekly, &stats)
		if ok {
			rec.HasWeeklyBaseline = true
			rec.WeeklyDiff, rec.WeeklyPct = Delta(snap.Stars, weekly.Stars)
		} else {
			stats.NoWeekly++
		}

		records = append(records, rec)
	}

	c.logger.Info("Calculated growth",
		"repos", len(records),
		"without_daily", stats.NoDaily,
		"without_weekly", stats.NoWeekly,
		"lookup_failures", stats.LookupFailures)
	return records, stats
}

func (c *Calculator) baseline(ctx context.Context, snap model.Snapshot, w model.Window, stats *Stats) (*model.Snapshot, bool) {
	prior, err := c.store.NearestSnapshotBefore(ctx, snap.RepoName, snap.CapturedAt, w)
	if err != nil {
		stats.LookupFailures++
		c.logger.Warn("Baseline lookup failed", "repo", snap.RepoName, "window", w.Target, "error", err)
		return nil, false
	}
	return prior, prior != nil
}

func newRecord(s model.Snapshot) model.GrowthRecord {
	return model.GrowthRecord{
		RepoName:       s.RepoName,
		Stars:          s.Stars,
		CreatedAt:      s.CreatedAt,
		Description:    s.Description,
		Language:       s.Language,
		Topics:         s.Topics,
		Sponsors:       s.Sponsors,
		Contributors:   s.Contributors,
		Commits7d:      s.Commits7d,
		IssuesClosed7d: s.IssuesClosed7d,
		CapturedAt:     s.CapturedAt,
	}
}
