// internal/model/window.go
package model

import (
	"fmt"
	"time"
)

// Window is the tolerance interval used to pick the snapshot that counts as
// "Target ago". A snapshot qualifies when it was captured between Max and Min
// before the reference time, both bounds inclusive.
type Window struct {
	Target time.Duration
	Min    time.Duration
	Max    time.Duration
}

var (
	DailyWindow  = Window{Target: 24 * time.Hour, Min: 20 * time.Hour, Max: 28 * time.Hour}
	WeeklyWindow = Window{Target: 7 * 24 * time.Hour, Min: 6 * 24 * time.Hour, Max: 8 * 24 * time.Hour}
)

// Validate reports whether Min <= Target <= Max and Min is positive.
func (w Window) Validate() error {
	if w.Min <= 0 {
		return fmt.Errorf("window min must be positive, got %s", w.Min)
	}
	if w.Min > w.Target || w.Target > w.Max {
		return fmt.Errorf("window must satisfy min <= target <= max, got %s <= %s <= %s", w.Min, w.Target, w.Max)
	}
	return nil
}

// Bounds returns the earliest and latest qualifying capture times for ref.
func (w Window) Bounds(ref time.Time) (earliest, latest time.Time) {
	return ref.Add(-w.Max), ref.Add(-w.Min)
}

// Nearest picks the snapshot whose capture time is closest to ref-Target among
// those inside the window. Equidistant candidates resolve to the earlier one.
// Rows captured after ref never qualify. It returns nil when nothing qualifies.
func Nearest(rows []Snapshot, ref time.Time, w Window) *Snapshot {
	earliest, latest := w.Bounds(ref)
	target := ref.Add(-w.Target)

	var best *Snapshot
	var bestDist time.Duration
	for i := range rows {
		at := rows[i].CapturedAt
		if at.Before(earliest) || at.After(latest) || at.After(ref) {
			continue
		}
		dist := absDuration(at.Sub(target))
		if best == nil || dist < bestDist || (dist == bestDist && at.Before(best.CapturedAt)) {
			best = &rows[i]
			bestDist = dist
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
