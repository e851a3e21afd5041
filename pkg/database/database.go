package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database wraps the Postgres connection pool used by the optional
// telemetry store.
type Database struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// Config holds the pool settings.
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// New opens the pool and pings the server.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Database, error) {
	log := logger.Named("Postgres")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to PostgreSQL", zap.Int32("maxConns", poolConfig.MaxConns))
	return &Database{Pool: pool, logger: log}, nil
}

// Close releases every pooled connection.
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("PostgreSQL pool closed")
	}
}
