package db

import (
	"context"
	"fmt"
	"time"

	"github.com/docuflow/engine/common/config"
	"github.com/docuflow/engine/common/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps pgxpool for the job archive. It owns the schema bootstrap; the
// archive writer in engine/job only issues DML against it.
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// New creates the archive connection pool
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connected", "host", cfg.Database.Host, "db", cfg.Database.Database)

	return &DB{
		Pool: pool,
		log:  log,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.log.Info("closing database connection pool")
	db.Pool.Close()
}

// Health checks database health
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.Pool.Ping(ctx)
}

// EnsureJobArchive creates the job archive table if it does not exist. Called
// once on startup before any terminal job is written through.
func (db *DB) EnsureJobArchive(ctx context.Context) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_archive (
			job_id            UUID PRIMARY KEY,
			workflow_id       TEXT NOT NULL,
			workflow_type     TEXT NOT NULL,
			status            TEXT NOT NULL,
			priority          TEXT NOT NULL,
			owner_tag         TEXT,
			result            JSONB,
			error             TEXT,
			created_at        TIMESTAMPTZ NOT NULL,
			started_at        TIMESTAMPTZ,
			completed_at      TIMESTAMPTZ,
			execution_time_ms BIGINT
		)
	`)
	if err != nil {
		return fmt.Errorf("create job_archive table: %w", err)
	}

	db.log.Info("job archive schema ready")
	return nil
}
