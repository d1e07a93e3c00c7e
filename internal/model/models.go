// internal/model/models.go
package model

import (
	"strings"
	"time"
)

// EpochSentinel stands in for dates the upstream index did not report.
var EpochSentinel = time.Unix(0, 0).UTC()

// Candidate is a repository returned by discovery, before it is captured.
type Candidate struct {
	RepoName       string
	Stars          int
	Description    *string
	Language       *string
	Topics         []string
	CreatedAt      time.Time
	Sponsors       int
	Contributors   int
	Commits7d      int
	IssuesClosed7d int
}

// Snapshot is the observed state of one repository at one capture time.
// (RepoName, CapturedAt) is unique within the snapshot store.
type Snapshot struct {
	RepoName       string    `json:"repo_name"`
	CapturedAt     time.Time `json:"captured_at"`
	RunID          string    `json:"run_id"`
	Stars          int       `json:"stars"`
	Description    *string   `json:"description"`
	Language       *string   `json:"language"`
	Topics         []string  `json:"topics"`
	CreatedAt      time.Time `json:"created_at"`
	Sponsors       int       `json:"sponsors"`
	Contributors   int       `json:"contributors"`
	Commits7d      int       `json:"commits_7d"`
	IssuesClosed7d int       `json:"issues_closed_7d"`
}

// NewSnapshot captures a candidate at the given time, applying the missing-field defaults.
func NewSnapshot(c Candidate, runID string, capturedAt time.Time) Snapshot {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = EpochSentinel
	}
	topics := c.Topics
	if topics == nil {
		topics = []string{}
	}
	return Snapshot{
		RepoName:       strings.TrimSpace(c.RepoName),
		CapturedAt:     NormalizeTime(capturedAt),
		RunID:          runID,
		Stars:          nonNegative(c.Stars),
		Description:    nilIfEmpty(c.Description),
		Language:       nilIfEmpty(c.Language),
		Topics:         topics,
		CreatedAt:      createdAt.UTC(),
		Sponsors:       nonNegative(c.Sponsors),
		Contributors:   nonNegative(c.Contributors),
		Commits7d:      nonNegative(c.Commits7d),
		IssuesClosed7d: nonNegative(c.IssuesClosed7d),
	}
}

// GrowthRecord is one row of the enriched dataframe handed to every downstream consumer.
type GrowthRecord struct {
	RepoName          string    `json:"repo_name"`
	Stars             int       `json:"stars"`
	DailyDiff         int       `json:"daily_diff"`
	DailyPct          float64   `json:"daily_pct"`
	WeeklyDiff        int       `json:"weekly_diff"`
	WeeklyPct         float64   `json:"weekly_pct"`
	CreatedAt         time.Time `json:"created_at"`
	Description       *string   `json:"description"`
	Language          *string   `json:"language"`
	Topics            []string  `json:"topics"`
	Sponsors          int       `json:"sponsors"`
	Contributors      int       `json:"contributors"`
	Commits7d         int       `json:"commits_7d"`
	IssuesClosed7d    int       `json:"issues_closed_7d"`
	CapturedAt        time.Time `json:"captured_at"`
	HasDailyBaseline  bool      `json:"has_daily_baseline"`
	HasWeeklyBaseline bool      `json:"has_weekly_baseline"`
}

// Owner returns the lower-cased owner part of the repository name.
func (g GrowthRecord) Owner() string {
	owner, _, ok := SplitRepoName(g.RepoName)
	if !ok {
		return ""
	}
	return strings.ToLower(owner)
}

// MirrorRow is the latest known state of a repository in the external mirror.
type MirrorRow struct {
	RepoName       string
	Stars          int
	DailyDiff      int
	DailyPct       float64
	WeeklyDiff     int
	WeeklyPct      float64
	CreatedAt      time.Time
	Description    *string
	Language       *string
	Topics         []string
	Sponsors       int
	Contributors   int
	Commits7d      int
	IssuesClosed7d int
	CapturedAt     time.Time
}

// ToMirrorRow projects a growth record onto the mirror's latest-state shape.
func (g GrowthRecord) ToMirrorRow() MirrorRow {
	return MirrorRow{
		RepoName:       g.RepoName,
		Stars:          g.Stars,
		DailyDiff:      g.DailyDiff,
		DailyPct:       g.DailyPct,
		WeeklyDiff:     g.WeeklyDiff,
		WeeklyPct:      g.WeeklyPct,
		CreatedAt:      g.CreatedAt,
		Description:    g.Description,
		Language:       g.Language,
		Topics:         g.Topics,
		Sponsors:       g.Sponsors,
		Contributors:   g.Contributors,
		Commits7d:      g.Commits7d,
		IssuesClosed7d: g.IssuesClosed7d,
		CapturedAt:     g.CapturedAt,
	}
}

// SplitRepoName splits "owner/name". ok is false for anything else.
func SplitRepoName(repoName string) (owner, name string, ok bool) {
	parts := strings.Split(repoName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// NormalizeTime converts t to UTC with the microsecond precision every store keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func nilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
