package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsPath finds db/migrations relative to the working directory.
func migrationsPath() (string, error) {
	candidates := []string{"db/migrations", "migrations", "../db/migrations"}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path for %s: %w", p, err)
			}
			return "file://" + abs, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found in any of the expected locations: %v", candidates)
}

func newMigrate(db *sql.DB, path string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies the versioned migrations in db/migrations. Safe to
// run repeatedly.
func RunMigrations(db *sql.DB) error {
	path, err := migrationsPath()
	if err != nil {
		return err
	}
	return RunMigrationsFromPath(db, path)
}

// RunMigrationsFromPath applies migrations from a file:// path.
func RunMigrationsFromPath(db *sql.DB, path string) error {
	m, err := newMigrate(db, path)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("database schema is up to date", slog.String("component", "db_migrate"))
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		slog.Warn("could not determine migration version", slog.Any("error", err), slog.String("component", "db_migrate"))
		return nil
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d - manual intervention required", version)
	}
	slog.Info("migrations applied successfully", slog.Uint64("version", uint64(version)), slog.String("component", "db_migrate"))
	return nil
}

// MigrationVersion returns the applied version and dirty flag (0 when none).
func MigrationVersion(db *sql.DB) (uint, bool, error) {
	path, err := migrationsPath()
	if err != nil {
		return 0, false, err
	}
	m, err := newMigrate(db, path)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, dirty, nil
}
