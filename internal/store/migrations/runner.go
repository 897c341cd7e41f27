// Package migrations runs the engine's schema migrations, grounded on the
// teacher pack's golang-migrate runner (river0825-ai-expense's
// internal/adapter/repository/migrations/runner.go), trimmed to the single
// postgres driver this engine ships against.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Run applies every pending migration under files/ (idempotent — re-running
// against an up-to-date schema is a no-op).
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	path := "file://internal/store/migrations/files"
	if _, err := os.Stat("/app/migrations"); err == nil {
		path = "file:///app/migrations"
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrations: create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrations: initialize migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migrations.no_change")
			return nil
		}
		if err.Error() == "dirty" {
			return fmt.Errorf("migrations: database is dirty (interrupted migration); manual intervention required")
		}
		return fmt.Errorf("migrations: up: %w", err)
	}

	logger.Info("migrations.applied")
	return nil
}
