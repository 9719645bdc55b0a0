package storage

import "context"

// IndexerProgress represents the last indexed position in the ledger.
type IndexerProgress struct {
	Slot      uint64 // slot of the last flushed transaction
	Signature string // last flushed transaction signature
}

// IndexerProgressStore provides persistence for indexer state.
// This enables backfill after restarts without reprocessing transactions.
type IndexerProgressStore interface {
	// GetLastProcessed returns the last indexed slot and signature.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*IndexerProgress, error)

	// SetLastProcessed saves the last indexed slot and signature.
	SetLastProcessed(ctx context.Context, progress *IndexerProgress) error
}
