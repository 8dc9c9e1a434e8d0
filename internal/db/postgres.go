package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPostgres opens the pool backing the audit event log. The portal only
// writes small rows, so the pool stays small.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

const eventLogSchema = `
CREATE TABLE IF NOT EXISTS event_logs (
	id         BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	actor      TEXT NOT NULL DEFAULT '',
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, eventLogSchema); err != nil {
		return fmt.Errorf("create event_logs: %w", err)
	}
	return nil
}
