package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// PostgresConn is the part of a pgx pool the runner uses.
type PostgresConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// postgresLockKey is the advisory lock held while a migration applies.
const postgresLockKey int64 = 0x657363726f77

const createPostgresVersions = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// RunPostgresMigrations applies the embedded migrations that schema_migrations
// does not list yet, each in its own transaction together with its version row.
// It returns the number of migrations applied.
func RunPostgresMigrations(ctx context.Context, conn PostgresConn, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	all, err := PostgresMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range all {
		ran, err := applyPostgres(ctx, conn, m)
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.File(), err)
		}
		if ran {
			applied++
			logger.Info("applied postgres migration",
				zap.Int("version", m.Version),
				zap.String("name", m.Name),
			)
		}
	}

	logger.Debug("postgres schema up to date",
		zap.Int("applied", applied),
		zap.Int("version", all[len(all)-1].Version),
	)
	return applied, nil
}

// applyPostgres runs m unless another process already has. The advisory lock
// serializes concurrent startups.
func applyPostgres(ctx context.Context, conn PostgresConn, m Migration) (bool, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, postgresLockKey); err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}
	if _, err := tx.Exec(ctx, createPostgresVersions); err != nil {
		return false, fmt.Errorf("create schema_migrations: %w", err)
	}

	var done bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("check version: %w", err)
	}
	if done {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return false, fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
