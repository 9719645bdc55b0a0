package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/storage"
)

// Backfiller indexes historical transactions of an address over JSON-RPC.
type Backfiller struct {
	rpc           solana.RPCClient
	writer        *Writer
	progressStore storage.IndexerProgressStore
	address       solana.PublicKey
	pageSize      int
	logger        *zap.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC           solana.RPCClient
	Writer        *Writer
	ProgressStore storage.IndexerProgressStore // optional: resume point
	Address       solana.PublicKey             // usually the escrow program ID
	PageSize      int                          // Default: 1000
	Logger        *zap.Logger
}

// NewBackfiller creates a new historical backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backfiller{
		rpc:           opts.RPC,
		writer:        opts.Writer,
		progressStore: opts.ProgressStore,
		address:       opts.Address,
		pageSize:      pageSize,
		logger:        logger,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	Signatures        int
	Transactions      int
	Events            int
	DuplicatesSkipped int
	Duration          time.Duration
}

// Run pages through the address history, newest first, until the last
// indexed signature (or the beginning), fetches every transaction, then
// writes everything oldest first in pages. Nothing is written unless every
// signature resolves.
func (b *Backfiller) Run(ctx context.Context) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	until := ""
	if b.progressStore != nil {
		progress, err := b.progressStore.GetLastProcessed(ctx)
		switch {
		case err == nil:
			until = progress.Signature
		case !errors.Is(err, storage.ErrNotFound):
			return result, fmt.Errorf("load progress: %w", err)
		}
	}

	sigs, err := b.collectSignatures(ctx, until)
	if err != nil {
		return result, err
	}
	result.Signatures = len(sigs)

	b.logger.Info("starting backfill",
		zap.Stringer("address", b.address),
		zap.String("until", until),
		zap.Int("signatures", len(sigs)),
	)

	// Fetch everything before writing so an unresolvable signature leaves
	// the stores and the checkpoint untouched.
	records := make([]*domain.TransactionRecord, 0, len(sigs))
	for i := len(sigs) - 1; i >= 0; i-- {
		rec, err := b.fetch(ctx, sigs[i])
		if err != nil {
			return result, err
		}
		records = append(records, rec)
	}

	// Oldest first, in pages
	for begin := 0; begin < len(records); begin += b.pageSize {
		end := min(begin+b.pageSize, len(records))
		res, err := b.writer.Write(ctx, records[begin:end])
		result.Transactions += res.Transactions
		result.Events += res.Events
		result.DuplicatesSkipped += res.DuplicatesSkipped
		if err != nil {
			return result, fmt.Errorf("write backfill page: %w", err)
		}
	}

	result.Duration = time.Since(start)
	b.logger.Info("backfill complete",
		zap.Int("transactions", result.Transactions),
		zap.Int("events", result.Events),
		zap.Int("duplicates", result.DuplicatesSkipped),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// collectSignatures returns signatures newer than until, newest first.
func (b *Backfiller) collectSignatures(ctx context.Context, until string) ([]solana.SignatureInfo, error) {
	var (
		all    []solana.SignatureInfo
		before string
	)
	for {
		page, err := b.rpc.GetSignaturesForAddress(ctx, b.address, &solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  b.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures for %s: %w", b.address, err)
		}
		all = append(all, page...)
		if len(page) < b.pageSize {
			return all, nil
		}
		before = page[len(page)-1].Signature
	}
}

func (b *Backfiller) fetch(ctx context.Context, info solana.SignatureInfo) (*domain.TransactionRecord, error) {
	sig, err := solana.ParseSignature(info.Signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	tx, err := b.rpc.GetTransaction(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", info.Signature, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("get transaction %s: %w", info.Signature, ErrTransactionNotFound)
	}
	return RecordFromConfirmed(info.Signature, tx), nil
}
