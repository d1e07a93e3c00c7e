// cmd/tracker/app.go
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"repo-growth-tracker/internal/config"
	"repo-growth-tracker/internal/github"
	"repo-growth-tracker/internal/mirror"
	"repo-growth-tracker/internal/store"
	"repo-growth-tracker/internal/tracker"
)

// app holds the long-lived resources a command needs.
type app struct {
	store store.Store
	pool  *pgxpool.Pool
}

// openApp migrates and opens the configured snapshot store.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	switch cfg.StoreDriver {
	case store.DriverPostgres:
		if err := store.RunMigrations(store.DriverPostgres, cfg.DBURL); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Database connection established", "driver", cfg.StoreDriver)
		return &app{store: store.NewPostgresStore(pool, logger), pool: pool}, nil
	default:
		s, err := store.OpenSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Database opened", "driver", cfg.StoreDriver, "path", cfg.SQLitePath)
		return &app{store: s}, nil
	}
}

// postgresPool returns the store's pool, or opens one for a Postgres mirror in
// front of a SQLite store.
func (a *app) postgresPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	if err := store.RunMigrations(store.DriverPostgres, cfg.DBURL); err != nil {
		return nil, fmt.Errorf("failed to run mirror migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mirror database: %w", err)
	}
	a.pool = pool
	return pool, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close store", "error", err)
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// newTracker wires discovery, store and mirror into a tracker.
func (a *app) newTracker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tracker.Tracker, error) {
	if err := cfg.RequireGithubToken(); err != nil {
		return nil, err
	}

	ghClient, err := github.NewClient(cfg.GithubToken, github.Options{
		BaseURL:             cfg.GithubAPIURL,
		PageSize:            cfg.PageSize,
		SearchRatePerMinute: cfg.SearchRatePerMinute,
		EnrichActivity:      cfg.EnrichActivity,
		EnrichConcurrency:   cfg.EnrichConcurrency,
		RateLimitRetry:      cfg.RetryPolicy(),
		TransientRetry:      cfg.TransientPolicy(),
	}, logger)
	if err != nil {
		return nil, err
	}

	var syncer tracker.MirrorSyncer
	switch cfg.MirrorDriver {
	case mirror.DriverAirtable:
		m, err := mirror.NewAirtableMirror(mirror.AirtableConfig{
			APIURL: cfg.AirtableAPIURL,
			BaseID: cfg.AirtableBaseID,
			Table:  cfg.AirtableTable,
			Token:  cfg.AirtableToken,
		}, logger)
		if err != nil {
			return nil, err
		}
		syncer = mirror.NewSynchronizer(m, cfg.MirrorBatchSize, cfg.RetryPolicy(), logger)
	case mirror.DriverPostgres:
		pool, err := a.postgresPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		syncer = mirror.NewSynchronizer(mirror.NewPostgresMirror(pool, logger), cfg.MirrorBatchSize, cfg.RetryPolicy(), logger)
	default:
		logger.Info("Mirror sync disabled")
	}

	return tracker.NewTracker(a.store, ghClient, syncer, tracker.Options{
		SearchQuery:    cfg.SearchQuery,
		MaxResults:     cfg.MaxResults,
		RunTimeout:     cfg.RunTimeout,
		DailyWindow:    cfg.DailyWindow(),
		WeeklyWindow:   cfg.WeeklyWindow(),
		TopN:           cfg.TopN,
		ExcludedOwners: cfg.ExcludedOwners,
	}, logger), nil
}
