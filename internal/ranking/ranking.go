// internal/ranking/ranking.go
package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"repo-growth-tracker/internal/model"
)

// Period selects which growth figures a ranking orders by.
type Period string

const (
	Daily  Period = "daily"
	Weekly Period = "weekly"
)

// ParsePeriod accepts "daily" or "weekly", case-insensitively.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Daily, Weekly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q, expected daily or weekly", s)
	}
}

// DefaultExcludedOwners are large organisations left out of the top lists.
var DefaultExcludedOwners = []string{
	"microsoft", "huggingface", "google", "facebook", "n8n-io", "modelcontextprotocol",
	"ollama", "meta", "amazon", "aws", "openai", "apple", "ibm", "nvidia", "intel",
	"salesforce", "databricks", "anthropic", "stability-ai", "qwen", "qwenlm", "vercel",
	"deepmind", "deepseek-ai", "deepseek", "xai", "pytorch", "tensorflow", "baidu",
	"bytedance", "alibaba", "deeplearning4j",
}

type Options struct {
	By             Period
	N              int
	ExcludedOwners []string
}

// Top returns up to N records with the highest growth percentage for the period.
// Ties go to the larger absolute gain, then to the repository name. For the daily
// ranking, owners in ExcludedOwners are skipped unless too few records remain, in
// which case the list is topped up from the excluded ones in the same order. The
// weekly ranking covers every owner.
func Top(records []model.GrowthRecord, opts Options) []model.GrowthRecord {
	if opts.N <= 0 || len(records) == 0 {
		return nil
	}

	ranked := slices.Clone(records)
	slices.SortStableFunc(ranked, compareBy(opts.By))

	excluded := make(map[string]struct{})
	if opts.By != Weekly {
		for _, o := range opts.ExcludedOwners {
			excluded[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
		}
	}

	top := make([]model.GrowthRecord, 0, opts.N)
	var skipped []model.GrowthRecord
	for _, rec := range ranked {
		if _, ok := excluded[rec.Owner()]; ok {
			skipped = append(skipped, rec)
			continue
		}
		if len(top) < opts.N {
			top = append(top, rec)
		}
	}
	for _, rec := range skipped {
		if len(top) >= opts.N {
			break
		}
		top = append(top, rec)
	}
	return top
}

func compareBy(p Period) func(a, b model.GrowthRecord) int {
	return func(a, b model.GrowthRecord) int {
		aPct, aDiff := a.DailyPct, a.DailyDiff
		bPct, bDiff := b.DailyPct, b.DailyDiff
		if p == Weekly {
			aPct, aDiff = a.WeeklyPct, a.WeeklyDiff
			bPct, bDiff = b.WeeklyPct, b.WeeklyDiff
		}
		if c := cmp.Compare(bPct, aPct); c != 0 {
			return c
		}
		if c := cmp.Compare(bDiff, aDiff); c != 0 {
			return c
		}
		return strings.Compare(a.RepoName, b.RepoName)
	}
}
