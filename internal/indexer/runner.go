package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/observability"
	"escrow-lab/internal/solana"
)

// ErrSourceClosed is returned by Run when the notification stream ends.
var ErrSourceClosed = errors.New("notification channel closed")

// Runner indexes transactions as they are processed. Records are buffered
// and written in batches ordered by (slot, signature).
type Runner struct {
	source        Source
	writer        *Writer
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	buffer []*domain.TransactionRecord

	statsMu sync.Mutex
	stats   RunnerStats
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source        Source
	Writer        *Writer
	BatchSize     int           // Default: 100 records
	FlushInterval time.Duration // Default: 1s - force flush buffered records periodically
	Logger        *zap.Logger
}

// RunnerStats contains counters since the runner started.
type RunnerStats struct {
	TransactionsIndexed int64
	EventsIndexed       int64
	DuplicatesSkipped   int64
	Errors              int64
	LastFlush           time.Time
}

// NewRunner creates a new indexer runner.
func NewRunner(opts RunnerOptions) *Runner {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		source:        opts.Source,
		writer:        opts.Writer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Run indexes notifications until ctx is cancelled. Buffered records are
// flushed before returning.
func (r *Runner) Run(ctx context.Context) error {
	notifications, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	r.logger.Info("indexer started",
		zap.Int("batch_size", r.batchSize),
		zap.Duration("flush_interval", r.flushInterval),
	)

	for {
		select {
		case <-ctx.Done():
			// Flush all remaining records before shutdown
			r.flush(context.WithoutCancel(ctx))
			r.logger.Info("indexer stopping")
			return ctx.Err()

		case n, ok := <-notifications:
			if !ok {
				r.flush(context.WithoutCancel(ctx))
				return ErrSourceClosed
			}
			r.handleNotification(ctx, n)
			if len(r.buffer) >= r.batchSize {
				r.flush(ctx)
			}

		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// handleNotification resolves a notification to its full record and buffers it.
func (r *Runner) handleNotification(ctx context.Context, n solana.LogNotification) {
	rec, err := r.source.Transaction(ctx, n.Signature)
	if err != nil {
		observability.RecordIndexerError("fetch")
		r.addErrors(1)
		r.logger.Warn("fetch transaction failed", zap.String("signature", n.Signature), zap.Error(err))
		return
	}
	r.buffer = append(r.buffer, rec)
	observability.SetIndexerBufferSize(len(r.buffer))
}

// flush writes the buffer. Records stay buffered when the write fails and
// are retried on the next flush.
func (r *Runner) flush(ctx context.Context) {
	if len(r.buffer) == 0 {
		return
	}

	res, err := r.writer.Write(ctx, r.buffer)

	r.statsMu.Lock()
	r.stats.TransactionsIndexed += int64(res.Transactions)
	r.stats.EventsIndexed += int64(res.Events)
	r.stats.DuplicatesSkipped += int64(res.DuplicatesSkipped)
	r.stats.LastFlush = time.Now()
	r.statsMu.Unlock()

	if err != nil {
		r.addErrors(1)
		r.logger.Error("flush failed", zap.Int("buffered", len(r.buffer)), zap.Error(err))
		return
	}

	r.logger.Debug("flushed batch",
		zap.Int("transactions", res.Transactions),
		zap.Int("events", res.Events),
		zap.Int("duplicates", res.DuplicatesSkipped),
	)
	r.buffer = r.buffer[:0]
	observability.SetIndexerBufferSize(0)
}

func (r *Runner) addErrors(n int64) {
	r.statsMu.Lock()
	r.stats.Errors += n
	r.statsMu.Unlock()
}

// Stats returns current runner statistics.
func (r *Runner) Stats() RunnerStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}
