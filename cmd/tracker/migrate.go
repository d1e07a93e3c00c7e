// cmd/tracker/migrate.go
package main

import (
	"github.com/spf13/cobra"

	"repo-growth-tracker/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := cfg.SQLitePath
		if cfg.StoreDriver == store.DriverPostgres {
			dsn = cfg.DBURL
		}
		if err := store.RunMigrations(cfg.StoreDriver, dsn); err != nil {
			return err
		}
		logger.Info("Database migrations applied successfully", "driver", cfg.StoreDriver)
		return nil
	},
}
