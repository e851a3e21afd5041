package database

import (
	"context"
	"embed"
	"path"

	"iep-rehearsal/pkg/migration"

	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate brings the telemetry schema up to date. driver is
// migration.DriverSQLite or migration.DriverPostgres.
func Migrate(ctx context.Context, driver, dsn string, logger *zap.Logger) error {
	return newMigrator(driver, dsn, logger).Up(ctx)
}

// SchemaVersion reports the applied migration version.
func SchemaVersion(ctx context.Context, driver, dsn string, logger *zap.Logger) (uint, bool, error) {
	return newMigrator(driver, dsn, logger).Version(ctx)
}

func newMigrator(driver, dsn string, logger *zap.Logger) *migration.Migrator {
	return migration.NewMigrator(migration.Config{
		Driver:         driver,
		DSN:            dsn,
		MigrationsFS:   migrationsFS,
		MigrationsPath: path.Join("migrations", driver),
	}, logger)
}
