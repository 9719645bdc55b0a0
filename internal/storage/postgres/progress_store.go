package postgres

import (
	"context"
	"fmt"

	"escrow-lab/internal/storage"
)

// IndexerProgressStore is a PostgreSQL implementation of storage.IndexerProgressStore.
// The indexer_progress table holds a single row with (slot, signature).
type IndexerProgressStore struct {
	pool *Pool
}

// NewIndexerProgressStore creates a new PostgreSQL indexer progress store.
func NewIndexerProgressStore(pool *Pool) *IndexerProgressStore {
	return &IndexerProgressStore{pool: pool}
}

var _ storage.IndexerProgressStore = (*IndexerProgressStore)(nil)

// GetLastProcessed returns the last indexed slot and signature.
func (s *IndexerProgressStore) GetLastProcessed(ctx context.Context) (*storage.IndexerProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slot, signature
		FROM indexer_progress
		WHERE id = 1
	`)

	var (
		progress storage.IndexerProgress
		slot     int64
	)
	if err := row.Scan(&slot, &progress.Signature); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get indexer progress: %w", err)
	}
	progress.Slot = uint64(slot)

	return &progress, nil
}

// SetLastProcessed saves the last indexed slot and signature.
// Uses upsert to handle initial insert and subsequent updates.
func (s *IndexerProgressStore) SetLastProcessed(ctx context.Context, progress *storage.IndexerProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_progress (id, slot, signature, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, int64(progress.Slot), progress.Signature)
	if err != nil {
		return fmt.Errorf("set indexer progress: %w", err)
	}

	return nil
}
