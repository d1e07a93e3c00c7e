// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	custom_errors "repo-growth-tracker/internal/errors"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/retry"
)

// The search API never returns more than this many results for one query.
const searchResultCap = 1000

const activityLookback = 7 * 24 * time.Hour

// Options tunes pagination, throttling and enrichment.
type Options struct {
	// BaseURL overrides the public API endpoint, e.g. for GitHub Enterprise.
	BaseURL  string
	PageSize int
	// SearchRatePerMinute throttles search requests client-side. Zero disables throttling.
	SearchRatePerMinute int
	EnrichActivity      bool
	EnrichConcurrency   int
	// RateLimitRetry governs waiting out upstream throttling.
	RateLimitRetry retry.Policy
	// TransientRetry governs network errors and 5xx responses for a single page.
	TransientRetry retry.Policy
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 || o.PageSize > 100 {
		o.PageSize = 100
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = 4
	}
	if o.RateLimitRetry.MaxAttempts <= 0 {
		o.RateLimitRetry = retry.Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: time.Minute, Jitter: 0.1}
	}
	if o.TransientRetry.MaxAttempts <= 0 {
		o.TransientRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Jitter: 0.1}
	}
	return o
}

// Client discovers candidate repositories through the GitHub search API.
type Client struct {
	gh      *github.Client
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates and configures a new Client instance.
// A non-empty token is used to create an authenticated http.Client.
func NewClient(token string, opts Options, logger *slog.Logger) (*Client, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(context.Background(), ts)
	}

	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.SearchRatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.SearchRatePerMinute))
	}

	gh := github.NewClient(hc)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	return &Client{
		gh:      gh,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Discover lazily pages through the repositories matching query, most-starred first.
// The sequence ends after maxResults distinct repositories, when the index runs out,
// or with a single terminal error. Candidates yielded before an error remain valid.
func (c *Client) Discover(ctx context.Context, query string, maxResults int) iter.Seq2[model.Candidate, error] {
	return func(yield func(model.Candidate, error) bool) {
		limit := min(maxResults, searchResultCap)
		if limit <= 0 {
			return
		}

		seen := make(map[string]struct{})
		yielded := 0
		opts := &github.SearchOptions{
			Sort:  "stars",
			Order: "desc",
			ListOptions: github.ListOptions{
				Page:    1,
				PerPage: c.opts.PageSize,
			},
		}

		for {
			c.logger.Debug("Fetching search page", "query", query, "page", opts.Page)

			result, resp, err := c.searchPage(ctx, query, opts)
			if err != nil {
				yield(model.Candidate{}, err)
				return
			}

			var batch []model.Candidate
			for _, repo := range result.Repositories {
				cand := toCandidate(repo)
				if cand.RepoName == "" {
					continue
				}
				if _, dup := seen[cand.RepoName]; dup {
					continue
				}
				seen[cand.RepoName] = struct{}{}
				batch = append(batch, cand)
				if yielded+len(batch) >= limit {
					break
				}
			}

			if c.opts.EnrichActivity {
				c.enrich(ctx, batch)
			}

			for _, cand := range batch {
				if !yield(cand, nil) {
					return
				}
				yielded++
			}

			if yielded >= limit || resp.NextPage == 0 || len(result.Repositories) == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// Collect drains seq, returning everything yielded before the terminal error.
func Collect(seq iter.Seq2[model.Candidate, error]) ([]model.Candidate, error) {
	var out []model.Candidate
	for cand, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, cand)
	}
	return out, nil
}

// searchPage fetches one page. Transient failures are retried inside each
// rate-limit attempt, so a throttled page does not burn the transient budget.
func (c *Client) searchPage(ctx context.Context, query string, opts *github.SearchOptions) (*github.RepositoriesSearchResult, *github.Response, error) {
	page := opts.Page
	var result *github.RepositoriesSearchResult
	var resp *github.Response

	fetch := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		r, rsp, err := c.gh.Search.Repositories(ctx, query, opts)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		result, resp = r, rsp
		return nil
	}

	err := c.opts.RateLimitRetry.Do(ctx, func(ctx context.Context) error {
		err := c.opts.TransientRetry.Do(ctx, fetch, func(err error, attempt int, wait time.Duration) {
			c.logger.Warn("Transient search failure, retrying", "page", page, "attempt", attempt, "wait", wait, "error", err)
		})
		if err == nil {
			return nil
		}
		if hint, ok := rateLimitHint(err, c.now()); ok {
			return retry.After(err, hint)
		}
		return retry.Permanent(err)
	}, func(err error, attempt int, wait time.Duration) {
		c.logger.Warn("Search rate limited, backing off", "page", page, "attempt", attempt, "wait", wait, "error", err)
	})
	if err == nil {
		return result, resp, nil
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		if _, limited := rateLimitHint(exhausted.Err, c.now()); limited {
			return nil, nil, &custom_errors.RateLimitExceeded{Page: page, Attempts: exhausted.Attempts, Err: exhausted.Err}
		}
	}
	return nil, nil, &custom_errors.DiscoveryUnavailable{Page: page, Err: err}
}

// enrich fills the activity counters of each candidate in place. Failures leave
// the counter at zero.
func (c *Client) enrich(ctx context.Context, cands []model.Candidate) {
	var g errgroup.Group
	g.SetLimit(c.opts.EnrichConcurrency)
	for i := range cands {
		g.Go(func() error {
			c.enrichOne(ctx, &cands[i])
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Client) enrichOne(ctx context.Context, cand *model.Candidate) {
	owner, name, ok := model.SplitRepoName(cand.RepoName)
	if !ok {
		c.logger.Warn("Skipping enrichment", "error", &custom_errors.ErrInvalidRepoFormat{Repo: cand.RepoName})
		return
	}
	since := c.now().UTC().Add(-activityLookback)

	if n, err := c.countContributors(ctx, owner, name); err != nil {
		c.logger.Warn("Failed to count contributors", "repo", cand.RepoName, "error", err)
	} else {
		cand.Contributors = n
	}

	if n, err := c.countCommitsSince(ctx, owner, name, since); err != nil {
		c.logger.Warn("Failed to count recent commits", "repo", cand.RepoName, "error", err)
	} else {
		cand.Commits7d = n
	}

	if n, err := c.countIssuesClosedSince(ctx, cand.RepoName, since); err != nil {
		c.logger.Warn("Failed to count closed issues", "repo", cand.RepoName, "error", err)
	} else {
		cand.IssuesClosed7d = n
	}
}

// Listing with one item per page makes the last page number equal the total.
func (c *Client) countContributors(ctx context.Context, owner, name string) (int, error) {
	items, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name, &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, err
	}
	return lastPageCount(len(items), resp), nil
}

func (c *Client) countCommitsSince(ctx context.Context, owner, name string, since time.Time) (int, error) {
	items, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusConflict {
		// Empty repository.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return lastPageCount(len(items), resp), nil
}

func (c *Client) countIssuesClosedSince(ctx context.Context, repoName string, since time.Time) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("repo:%s is:issue is:closed closed:>=%s", repoName, since.Format(time.DateOnly))
	result, _, err := c.gh.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, err
	}
	return result.GetTotal(), nil
}

func lastPageCount(n int, resp *github.Response) int {
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage
	}
	return n
}

// rateLimitHint reports whether err is upstream throttling and how long the
// server asked us to wait.
func rateLimitHint(err error, now time.Time) (time.Duration, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return max(rle.Rate.Reset.Time.Sub(now), 0), true
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return *abuse.RetryAfter, true
		}
		return 0, true
	}
	// Some throttling responses arrive as a plain 429 rather than a 403.
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusTooManyRequests {
		return retryAfter(ghErr.Response.Header.Get("Retry-After"), now), true
	}
	return 0, false
}

// retryAfter parses a Retry-After header given either in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// toCandidate translates a search hit to our internal model.Candidate.
func toCandidate(r *github.Repository) model.Candidate {
	return model.Candidate{
		RepoName:    r.GetFullName(),
		Stars:       r.GetStargazersCount(),
		Description: r.Description,
		Language:    r.Language,
		Topics:      r.Topics,
		CreatedAt:   r.GetCreatedAt().Time,
	}
}
