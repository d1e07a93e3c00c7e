//go:build integration

// internal/mirror/postgres_integration_test.go
package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"repo-growth-tracker/internal/database"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/store"
)

func TestPostgresMirror_Integration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(store.DriverPostgres, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	syncer := NewSynchronizer(NewPostgresMirror(pool, testLogger()), 2, testPolicy, testLogger())
	q := database.New(pool)
	capturedAt := time.Date(2025, 4, 17, 12, 0, 0, 0, time.UTC)

	res := syncer.Sync(ctx, []model.GrowthRecord{
		{RepoName: "dave/lib", Stars: 40, CapturedAt: capturedAt},
		{RepoName: "alice/toolkit", Stars: 150, CapturedAt: capturedAt},
		{RepoName: "bob/newlib", Stars: 10, CapturedAt: capturedAt},
	})
	require.Empty(t, res.Failures)

	before, err := q.CountMirrorRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), before)

	res = syncer.Sync(ctx, []model.GrowthRecord{{RepoName: "dave/lib", Stars: 55, DailyDiff: 15, CapturedAt: capturedAt.Add(24 * time.Hour)}})
	require.Empty(t, res.Failures)

	after, err := q.CountMirrorRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	row, err := q.GetMirrorRow(ctx, "dave/lib")
	require.NoError(t, err)
	assert.Equal(t, int32(55), row.Stars)
	assert.Equal(t, int32(15), row.DailyDiff)
	assert.Equal(t, []string{}, row.Topics)
}
