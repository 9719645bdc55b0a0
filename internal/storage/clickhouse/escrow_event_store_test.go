package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/idhash"
	"escrow-lab/internal/storage"
	"escrow-lab/internal/storage/migrations"
)

func newEvent(kind domain.EscrowEventKind, sig string, slot int64, escrow, maker string, a, b uint64) *domain.EscrowEvent {
	e := &domain.EscrowEvent{
		EventID:   idhash.ComputeEventID(sig, 5, string(kind)),
		Kind:      kind,
		Signature: sig,
		LogIndex:  5,
		Slot:      slot,
		Timestamp: 1700000000000 + slot*400,
		Escrow:    escrow,
		Maker:     maker,
		MintA:     "MintA",
		Seed:      42,
		AmountA:   a,
		AmountB:   b,
	}
	if kind != domain.EscrowRefunded {
		e.MintB = ptr("MintB")
	}
	if kind == domain.EscrowTaken {
		e.Taker = ptr("Taker")
	}
	return e
}

func TestEscrowEventStore_InsertAndGetByEscrow(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowEventStore(conn)

	made := newEvent(domain.EscrowMade, "Sig1", 10, "Escrow1", "Maker1", 1_000_000_000, 500_000_000)
	taken := newEvent(domain.EscrowTaken, "Sig2", 12, "Escrow1", "Maker1", 1_000_000_000, 500_000_000)
	other := newEvent(domain.EscrowMade, "Sig3", 11, "Escrow2", "Maker2", 10, 5)

	require.NoError(t, store.InsertBulk(ctx, []*domain.EscrowEvent{taken, other, made}))

	events, err := store.GetByEscrow(ctx, "Escrow1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, made, events[0])
	assert.Equal(t, taken, events[1])

	byMaker, err := store.GetByMaker(ctx, "Maker2")
	require.NoError(t, err)
	require.Len(t, byMaker, 1)
	assert.Nil(t, byMaker[0].Taker)

	inRange, err := store.GetByTimeRange(ctx, made.Timestamp, other.Timestamp)
	require.NoError(t, err)
	assert.Len(t, inRange, 2)
}

func TestEscrowEventStore_InsertDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowEventStore(conn)

	made := newEvent(domain.EscrowMade, "Sig1", 10, "Escrow1", "Maker1", 100, 50)
	require.NoError(t, store.InsertBulk(ctx, []*domain.EscrowEvent{made}))

	refunded := newEvent(domain.EscrowRefunded, "Sig2", 11, "Escrow1", "Maker1", 100, 0)
	err := store.InsertBulk(ctx, []*domain.EscrowEvent{refunded, made})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	id, ok := storage.DuplicateKeyOf(err)
	assert.True(t, ok)
	assert.Equal(t, made.EventID, id)

	err = store.InsertBulk(ctx, []*domain.EscrowEvent{refunded, refunded})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	events, err := store.GetByEscrow(ctx, "Escrow1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEscrowEventStore_Summary(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowEventStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.EscrowEvent{
		newEvent(domain.EscrowMade, "Sig1", 1, "Escrow1", "Maker", 100, 50),
		newEvent(domain.EscrowMade, "Sig2", 2, "Escrow2", "Maker", 30, 20),
		newEvent(domain.EscrowTaken, "Sig3", 3, "Escrow1", "Maker", 100, 50),
	}))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, &domain.EscrowSummary{Kind: domain.EscrowMade, Count: 2, VolumeA: 130, VolumeB: 70}, summary[0])
	assert.Equal(t, &domain.EscrowSummary{Kind: domain.EscrowTaken, Count: 1, VolumeA: 100, VolumeB: 50}, summary[1])
}

func TestMigrations_AppliedOnce(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	applied, err := migrations.RunClickhouseMigrations(ctx, conn, nil)
	require.NoError(t, err)
	assert.Zero(t, applied)

	all, err := migrations.ClickhouseMigrations()
	require.NoError(t, err)

	var versions uint64
	require.NoError(t, conn.QueryRow(ctx, `SELECT count() FROM schema_migrations FINAL`).Scan(&versions))
	assert.Equal(t, uint64(len(all)), versions)
}
