// Package postgres implements the store interfaces on PostgreSQL. The
// database transaction is the unit of atomicity for vote aggregation; row
// locks serialize concurrent units touching the same user or country.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			channel_url TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			is_mod BOOLEAN NOT NULL DEFAULT FALSE,
			leveling DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_votes DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_points DOUBLE PRECISION NOT NULL DEFAULT 0,
			blocked_until TIMESTAMPTZ,
			latest_vote TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE TABLE IF NOT EXISTS country_caches (
			alpha2 TEXT PRIMARY KEY,
			votes BIGINT NOT NULL DEFAULT 0,
			points BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS countries (
			alpha2 TEXT PRIMARY KEY REFERENCES country_caches(alpha2),
			alpha3 TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			vote_id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			alpha2 TEXT NOT NULL REFERENCES countries(alpha2),
			vote_count BIGINT NOT NULL DEFAULT 1,
			points BIGINT NOT NULL DEFAULT 0,
			xp_gain DOUBLE PRECISION NOT NULL DEFAULT 0.04,
			redacted BOOLEAN NOT NULL DEFAULT FALSE,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_user_country ON votes(user_id, alpha2)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_timestamp ON votes(timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			alpha2 TEXT REFERENCES countries(alpha2),
			milestone BIGINT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
