// internal/mirror/airtable.go
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/retry"
)

// Airtable accepts at most 10 records per write request.
const airtableMaxRecords = 10

const DefaultAirtableAPIURL = "https://api.airtable.com"

type AirtableConfig struct {
	APIURL string
	BaseID string
	Table  string
	Token  string
}

// AirtableMirror upserts rows through the Airtable REST API, merging on repo_name.
type AirtableMirror struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewAirtableMirror(cfg AirtableConfig, logger *slog.Logger) (*AirtableMirror, error) {
	if cfg.BaseID == "" || cfg.Table == "" || cfg.Token == "" {
		return nil, fmt.Errorf("airtable mirror needs a base id, table and token")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAirtableAPIURL
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = 30 * time.Second

	return &AirtableMirror{
		endpoint: strings.TrimRight(apiURL, "/") + "/v0/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.Table),
		http:     hc,
		logger:   logger,
	}, nil
}

func (m *AirtableMirror) Name() string      { return DriverAirtable }
func (m *AirtableMirror) MaxBatchSize() int { return airtableMaxRecords }

type airtableUpsert struct {
	PerformUpsert struct {
		FieldsToMergeOn []string `json:"fieldsToMergeOn"`
	} `json:"performUpsert"`
	Typecast bool             `json:"typecast"`
	Records  []airtableRecord `json:"records"`
}

type airtableRecord struct {
	Fields airtableFields `json:"fields"`
}

type airtableFields struct {
	RepoName       string  `json:"repo_name"`
	Stars          int     `json:"stars"`
	DailyDiff      int     `json:"daily_diff"`
	DailyPct       float64 `json:"daily_pct"`
	WeeklyDiff     int     `json:"weekly_diff"`
	WeeklyPct      float64 `json:"weekly_pct"`
	CreatedAt      string  `json:"created_at"`
	Description    *string `json:"description"`
	Language       *string `json:"language"`
	Topics         string  `json:"topics"`
	Sponsors       int     `json:"sponsors"`
	Contributors   int     `json:"contributors"`
	Commits7d      int     `json:"commits_7d"`
	IssuesClosed7d int     `json:"issues_closed_7d"`
	CapturedAt     string  `json:"captured_at"`
}

// StatusError is a non-2xx answer from the Airtable API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("airtable returned %d: %s", e.StatusCode, e.Body)
}

// Upsert sends one PATCH request. Throttling and server errors are returned as
// retryable; any other rejection is permanent.
func (m *AirtableMirror) Upsert(ctx context.Context, rows []model.MirrorRow) error {
	if len(rows) > airtableMaxRecords {
		return retry.Permanent(fmt.Errorf("airtable batch of %d rows exceeds %d", len(rows), airtableMaxRecords))
	}

	payload := airtableUpsert{Typecast: true}
	payload.PerformUpsert.FieldsToMergeOn = []string{"repo_name"}
	for _, r := range rows {
		payload.Records = append(payload.Records, airtableRecord{Fields: toAirtableFields(r)})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Airtable asks clients to back off for 30 seconds after a 429.
		delay := 30 * time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			delay = time.Duration(secs) * time.Second
		}
		return retry.After(statusErr, delay)
	case resp.StatusCode >= http.StatusInternalServerError:
		return statusErr
	default:
		return retry.Permanent(statusErr)
	}
}

func toAirtableFields(r model.MirrorRow) airtableFields {
	return airtableFields{
		RepoName:       r.RepoName,
		Stars:          r.Stars,
		DailyDiff:      r.DailyDiff,
		DailyPct:       r.DailyPct,
		WeeklyDiff:     r.WeeklyDiff,
		WeeklyPct:      r.WeeklyPct,
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		Description:    r.Description,
		Language:       r.Language,
		Topics:         strings.Join(r.Topics, ", "),
		Sponsors:       r.Sponsors,
		Contributors:   r.Contributors,
		Commits7d:      r.Commits7d,
		IssuesClosed7d: r.IssuesClosed7d,
		CapturedAt:     r.CapturedAt.UTC().Format(time.RFC3339),
	}
}
