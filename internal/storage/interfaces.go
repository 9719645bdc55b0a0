package storage

import (
	"context"

	"escrow-lab/internal/domain"
)

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, tx *domain.TransactionRecord) error

	// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, txs []*domain.TransactionRecord) error

	// GetBySignature retrieves a transaction by signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TransactionRecord, error)

	// GetBySlotRange retrieves transactions within slots [from, to] (inclusive),
	// ordered by (slot ASC, signature ASC).
	GetBySlotRange(ctx context.Context, from, to int64) ([]*domain.TransactionRecord, error)

	// GetByAccount retrieves transactions mentioning account, ordered by
	// (slot ASC, signature ASC).
	GetByAccount(ctx context.Context, account string) ([]*domain.TransactionRecord, error)
}

// EscrowEventStore provides access to escrow_events storage.
type EscrowEventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.EscrowEvent) error

	// GetByEscrow retrieves the lifecycle of one escrow account,
	// ordered by (slot ASC, signature ASC, log_index ASC).
	GetByEscrow(ctx context.Context, escrow string) ([]*domain.EscrowEvent, error)

	// GetByMaker retrieves all events for escrows opened by maker, in the same order.
	GetByMaker(ctx context.Context, maker string) ([]*domain.EscrowEvent, error)

	// GetByTimeRange retrieves events within [start, end] (inclusive, milliseconds).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EscrowEvent, error)

	// Summary returns event counts and volumes per kind, ordered by kind.
	// Kinds without events are omitted.
	Summary(ctx context.Context) ([]*domain.EscrowSummary, error)
}
