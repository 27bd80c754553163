// Package database provides database setup, models, and the data access layer
// (Store) for group message history and named stickers.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/bymbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// NewDB opens the SQLite database at dbPath, applies pending migrations and
// returns the connection pool.
func NewDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB, ExtractDBNameFromPath(dbPath)); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied", "path", dbPath)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
		return
	}
	slog.Info("Database connection closed")
}

// ApplyMigrations runs the embedded migrations against db.
func ApplyMigrations(db *sql.DB, dbName string) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}
	if dbName == "" {
		return errors.New("database name for migration driver is empty")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("No database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	slog.Info("Database migrations applied", "database_name", dbName)
	return nil
}

// ExtractDBNameFromPath strips the "file:" scheme and query parameters from a
// SQLite DSN and URL-decodes the rest.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}
