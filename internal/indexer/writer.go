package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/observability"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/storage"
)

// Writer stores batches of transactions and their decoded escrow events.
// Stores are append-only; records already stored are skipped, so replaying
// a batch is safe.
type Writer struct {
	txStore       storage.TransactionStore
	eventStore    storage.EscrowEventStore
	progressStore storage.IndexerProgressStore
	programID     solana.PublicKey
	logger        *zap.Logger
}

// WriterOptions contains configuration for creating a Writer.
type WriterOptions struct {
	TransactionStore storage.TransactionStore
	EventStore       storage.EscrowEventStore
	ProgressStore    storage.IndexerProgressStore // optional
	ProgramID        solana.PublicKey
	Logger           *zap.Logger
}

// NewWriter creates a new batch writer.
func NewWriter(opts WriterOptions) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		txStore:       opts.TransactionStore,
		eventStore:    opts.EventStore,
		progressStore: opts.ProgressStore,
		programID:     opts.ProgramID,
		logger:        logger,
	}
}

// WriteResult contains statistics from one batch.
type WriteResult struct {
	Transactions      int
	Events            int
	DuplicatesSkipped int
}

// Write stores records in (slot, signature) order, then the events decoded
// from every record of the batch. Events of records stored by an earlier
// call are decoded again, so a batch retried after a failed event insert
// still stores its events; events already stored are skipped by ID.
func (w *Writer) Write(ctx context.Context, records []*domain.TransactionRecord) (WriteResult, error) {
	var result WriteResult
	if len(records) == 0 {
		return result, nil
	}

	records, repeated := dedupe(records)
	result.DuplicatesSkipped = repeated
	SortRecords(records)

	stored, dupes, err := w.storeTransactions(ctx, records)
	result.Transactions = len(stored)
	result.DuplicatesSkipped += dupes
	if err != nil {
		return result, err
	}

	var events []*domain.EscrowEvent
	for _, rec := range records {
		decoded, err := DecodeEscrowEvents(rec, w.programID)
		if err != nil {
			observability.RecordIndexerError("decode")
			w.logger.Warn("skipping undecodable events", zap.String("signature", rec.Signature), zap.Error(err))
			continue
		}
		events = append(events, decoded...)
	}
	SortEvents(events)

	n, dupes, err := w.storeEvents(ctx, events)
	result.Events = n
	if dupes > 0 {
		w.logger.Debug("escrow events already stored", zap.Int("count", dupes))
	}
	if err != nil {
		return result, err
	}

	last := records[len(records)-1]
	observability.SetLastIndexedSlot(uint64(last.Slot))
	if w.progressStore != nil {
		progress := &storage.IndexerProgress{Slot: uint64(last.Slot), Signature: last.Signature}
		if err := w.progressStore.SetLastProcessed(ctx, progress); err != nil {
			observability.RecordIndexerError("progress")
			return result, fmt.Errorf("save progress: %w", err)
		}
	}

	return result, nil
}

// storeTransactions inserts records in one batch, falling back to single
// inserts when the batch contains already stored signatures.
func (w *Writer) storeTransactions(ctx context.Context, records []*domain.TransactionRecord) ([]*domain.TransactionRecord, int, error) {
	err := w.txStore.InsertBulk(ctx, records)
	if err == nil {
		observability.RecordStored("transactions", len(records))
		return records, 0, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordIndexerError("store_transactions")
		return nil, 0, fmt.Errorf("insert transactions: %w", err)
	}
	if sig, ok := storage.DuplicateKeyOf(err); ok {
		w.logger.Debug("batch holds a stored transaction, inserting one by one", zap.String("signature", sig))
	}

	var (
		stored []*domain.TransactionRecord
		dupes  int
	)
	for _, rec := range records {
		err := w.txStore.Insert(ctx, rec)
		switch {
		case err == nil:
			stored = append(stored, rec)
		case errors.Is(err, storage.ErrDuplicateKey):
			dupes++
		default:
			observability.RecordIndexerError("store_transactions")
			return stored, dupes, fmt.Errorf("insert transaction %s: %w", rec.Signature, err)
		}
	}
	observability.RecordStored("transactions", len(stored))
	return stored, dupes, nil
}

// storeEvents inserts events in one batch, falling back to one batch per
// event on duplicates.
func (w *Writer) storeEvents(ctx context.Context, events []*domain.EscrowEvent) (int, int, error) {
	if len(events) == 0 {
		return 0, 0, nil
	}

	err := w.eventStore.InsertBulk(ctx, events)
	if err == nil {
		recordEvents(events)
		return len(events), 0, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordIndexerError("store_events")
		return 0, 0, fmt.Errorf("insert escrow events: %w", err)
	}
	if id, ok := storage.DuplicateKeyOf(err); ok {
		w.logger.Debug("batch holds a stored event, inserting one by one", zap.String("event_id", id))
	}

	var stored, dupes int
	for _, e := range events {
		err := w.eventStore.InsertBulk(ctx, []*domain.EscrowEvent{e})
		switch {
		case err == nil:
			stored++
			recordEvents([]*domain.EscrowEvent{e})
		case errors.Is(err, storage.ErrDuplicateKey):
			dupes++
		default:
			observability.RecordIndexerError("store_events")
			return stored, dupes, fmt.Errorf("insert escrow event %s: %w", e.EventID, err)
		}
	}
	return stored, dupes, nil
}

func recordEvents(events []*domain.EscrowEvent) {
	observability.RecordStored("escrow_events", len(events))
	for _, e := range events {
		observability.RecordEscrowEvent(e.Kind.String(), e.AmountA)
	}
}

// dedupe drops repeated signatures, keeping the first occurrence, and
// returns how many were dropped.
func dedupe(records []*domain.TransactionRecord) ([]*domain.TransactionRecord, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]*domain.TransactionRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Signature]; ok {
			continue
		}
		seen[rec.Signature] = struct{}{}
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
