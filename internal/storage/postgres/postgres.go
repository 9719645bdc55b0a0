// Package postgres stores indexed escrow transactions and the indexer
// checkpoint in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/storage"
)

// DefaultApplicationName tags escrow-lab sessions in pg_stat_activity.
const DefaultApplicationName = "escrow-lab"

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

type poolOptions struct {
	maxConns        int32
	applicationName string
}

// PoolOption configures NewPool.
type PoolOption func(*poolOptions)

// WithMaxConns caps the pool size. The indexer writes from one goroutine
// and reports read in bulk, so a handful of connections is enough.
func WithMaxConns(n int32) PoolOption {
	return func(o *poolOptions) { o.maxConns = n }
}

// WithApplicationName sets application_name for every session.
func WithApplicationName(name string) PoolOption {
	return func(o *poolOptions) { o.applicationName = name }
}

// NewPool connects to the escrow database and verifies the connection.
// Settings in the DSN win over options.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	options := poolOptions{applicationName: DefaultApplicationName}
	for _, opt := range opts {
		opt(&options)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if options.maxConns > 0 && !dsnSets(config, "pool_max_conns") {
		config.MaxConns = options.maxConns
	}
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok && options.applicationName != "" {
		config.ConnConfig.RuntimeParams["application_name"] = options.applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", config.ConnConfig.Database, err)
	}

	return &Pool{Pool: pool}, nil
}

// dsnSets reports whether the DSN carried the pool parameter key.
func dsnSets(config *pgxpool.Config, key string) bool {
	return strings.Contains(config.ConnString(), key+"=")
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// pgErrUniqueViolation is raised when a signature is inserted twice.
const pgErrUniqueViolation = "23505"

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// observe records query latency, and failures other than the expected
// duplicate, missing and invalid record outcomes.
func observe(operation string, start time.Time, err error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start))
	switch {
	case err == nil,
		errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrInvalidInput):
	default:
		observability.RecordDBError("postgres", operation)
	}
}
