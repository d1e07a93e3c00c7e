// internal/store/migrate.go
package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"repo-growth-tracker/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// RunMigrations applies the embedded schema for driver. For DriverSQLite, dsn is
// the database file path; for DriverPostgres it is the connection URL.
func RunMigrations(driver, dsn string) error {
	var dir, dbURL string
	switch driver {
	case DriverPostgres:
		dir, dbURL = "postgres", dsn
	case DriverSQLite:
		dir, dbURL = "sqlite", "sqlite3://"+dsn
	default:
		return fmt.Errorf("unsupported store driver %q", driver)
	}

	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
