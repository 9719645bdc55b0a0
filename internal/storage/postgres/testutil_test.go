package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/storage/migrations"
)

// setupTestDB starts PostgreSQL, connects a pool and applies the escrow
// schema. The returned cleanup terminates the container.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()
	pool, _, cleanup := startPostgres(t)
	_, err := migrations.RunPostgresMigrations(context.Background(), pool, zaptest.NewLogger(t))
	require.NoError(t, err, "failed to apply escrow schema")
	return pool, cleanup
}

// startPostgres starts an empty escrow database and returns a pool and its DSN.
func startPostgres(t *testing.T) (*Pool, string, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("escrow"),
		postgres.WithUsername("indexer"),
		postgres.WithPassword("indexer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err, "failed to create pool")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return pool, dsn, cleanup
}

// newRecord returns a successful make transaction signed by accounts[0].
func newRecord(sig string, slot int64, accounts ...string) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		Signature:    sig,
		Slot:         slot,
		BlockTime:    1700000000000 + slot*400,
		FeePayer:     accounts[0],
		Fee:          5000,
		ComputeUnits: 27150,
		Success:      true,
		Accounts:     accounts,
		Logs: []string{
			"Program " + escrow.ProgramID.String() + " invoke [1]",
			"Program log: Instruction: Make",
			"Program " + escrow.ProgramID.String() + " success",
		},
	}
}
