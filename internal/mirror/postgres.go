// internal/mirror/postgres.go
package mirror

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"repo-growth-tracker/internal/database"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/retry"
)

const postgresMaxBatchSize = 500

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresMirror keeps the latest state of each repository in the mirror_rows table.
type PostgresMirror struct {
	db     TxBeginner
	logger *slog.Logger
}

func NewPostgresMirror(db TxBeginner, logger *slog.Logger) *PostgresMirror {
	return &PostgresMirror{db: db, logger: logger}
}

func (m *PostgresMirror) Name() string      { return DriverPostgres }
func (m *PostgresMirror) MaxBatchSize() int { return postgresMaxBatchSize }

// Upsert writes the batch in one transaction, so a failed batch leaves no partial update.
func (m *PostgresMirror) Upsert(ctx context.Context, rows []model.MirrorRow) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return classifyPgError(err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	qtx := database.New(tx)
	for _, r := range rows {
		if err := qtx.UpsertMirrorRow(ctx, toUpsertParams(r)); err != nil {
			return classifyPgError(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyPgError(err)
	}
	m.logger.Debug("Upserted mirror rows", "rows", len(rows))
	return nil
}

// Rejections by the server are not worth retrying; connection trouble is.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Permanent(err)
	}
	return err
}

func toUpsertParams(r model.MirrorRow) database.UpsertMirrorRowParams {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return database.UpsertMirrorRowParams{
		RepoName:       r.RepoName,
		Stars:          int32(r.Stars),
		DailyDiff:      int32(r.DailyDiff),
		DailyPct:       r.DailyPct,
		WeeklyDiff:     int32(r.WeeklyDiff),
		WeeklyPct:      r.WeeklyPct,
		RepoCreatedAt:  r.CreatedAt.UTC(),
		Description:    r.Description,
		Language:       r.Language,
		Topics:         topics,
		Sponsors:       int32(r.Sponsors),
		Contributors:   int32(r.Contributors),
		Commits7d:      int32(r.Commits7d),
		IssuesClosed7d: int32(r.IssuesClosed7d),
		CapturedAt:     r.CapturedAt.UTC(),
	}
}
