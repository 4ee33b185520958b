package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsSource returns the file source URL for driver. The schema lives in
// <dir>/mysql or <dir>/postgresql; an empty dir means ./migrations.
func migrationsSource(dir, driver string) string {
	if dir == "" {
		dir = "migrations"
	}
	sub := "postgresql"
	if driver == "mysql" {
		sub = "mysql"
	}
	return "file://" + filepath.ToSlash(filepath.Join(dir, sub))
}

// RunMigrations applies pending schema migrations (the documents table and its
// indexes). It does not touch document contents; see RunMigrateFields for that.
func RunMigrations(logger *slog.Logger, driver, connectionString, dir string) error {
	source := migrationsSource(dir, driver)
	logger.Info("running database migrations", slog.String("driver", driver), slog.String("source", source))

	m, err := migrate.New(source, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}
