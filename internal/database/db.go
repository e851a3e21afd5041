package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"iep-rehearsal/pkg/migration"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteDSN enables WAL and a five second busy timeout.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// OpenSQLite opens (creating if needed) the database file at path, applies
// migrations and returns a handle limited to one open connection.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	log := logger.Named("SQLite").With(zap.String("path", path))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := SQLiteDSN(path)
	if err := Migrate(ctx, migration.DriverSQLite, dsn, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	log.Info("SQLite database ready")
	return db, nil
}

func CloseDB(db *sql.DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
		return
	}
	logger.Info("Database connection closed")
}
