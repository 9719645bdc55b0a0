// Package main indexes escrow transactions from a remote escrowd: it backfills
// the program's history over JSON-RPC from the last checkpoint, then follows
// new transactions through a WebSocket logs subscription.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"escrow-lab/internal/config"
	"escrow-lab/internal/indexer"
	"escrow-lab/internal/logging"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/storage"
	chstore "escrow-lab/internal/storage/clickhouse"
	"escrow-lab/internal/storage/memory"
	"escrow-lab/internal/storage/migrations"
	pgstore "escrow-lab/internal/storage/postgres"
)

// indexStores holds the stores the indexer writes to.
type indexStores struct {
	transactions storage.TransactionStore
	events       storage.EscrowEventStore
	progress     storage.IndexerProgressStore
}

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	flag.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "escrowd JSON-RPC endpoint")
	flag.StringVar(&cfg.WSEndpoint, "ws-endpoint", cfg.WSEndpoint, "escrowd WebSocket endpoint")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	programID := flag.String("program-id", escrow.ProgramID.String(), "Escrow program ID")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	backfillOnly := flag.Bool("backfill-only", false, "Exit after backfilling history")
	pageSize := flag.Int("page-size", 1000, "Signatures per getSignaturesForAddress page")
	batchSize := flag.Int("batch-size", 100, "Records per live write batch")
	flushInterval := flag.Duration("flush-interval", time.Second, "Live buffer flush interval")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if !*useMemory && (cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	program, err := solana.ParsePublicKey(*programID)
	if err != nil {
		logger.Fatal("invalid --program-id", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()

		sig = <-sigCh
		logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
		os.Exit(1)
	}()

	stores, cleanup, err := createStores(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatal("failed to create stores", zap.Error(err))
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithTimeout(cfg.RequestTimeout))
	writer := indexer.NewWriter(indexer.WriterOptions{
		TransactionStore: stores.transactions,
		EventStore:       stores.events,
		ProgressStore:    stores.progress,
		ProgramID:        program,
		Logger:           logger.Named("writer"),
	})

	// Subscribe before backfilling so nothing processed in between is missed.
	// The writer skips anything seen twice. Only the backfill checkpoints
	// progress.
	var live *indexer.Runner
	var liveErr chan error
	if !*backfillOnly {
		ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil)
		if err != nil {
			logger.Fatal("failed to connect websocket", zap.Error(err))
		}
		defer ws.Close()

		liveWriter := indexer.NewWriter(indexer.WriterOptions{
			TransactionStore: stores.transactions,
			EventStore:       stores.events,
			ProgramID:        program,
			Logger:           logger.Named("live-writer"),
		})
		live = indexer.NewRunner(indexer.RunnerOptions{
			Source:        indexer.NewRPCSource(ws, rpc, solana.LogsFilter{Mentions: []string{program.String()}}),
			Writer:        liveWriter,
			BatchSize:     *batchSize,
			FlushInterval: *flushInterval,
			Logger:        logger.Named("live"),
		})
		liveErr = make(chan error, 1)
		go func() { liveErr <- live.Run(ctx) }()
	}

	backfiller := indexer.NewBackfiller(indexer.BackfillOptions{
		RPC:           rpc,
		Writer:        writer,
		ProgressStore: stores.progress,
		Address:       program,
		PageSize:      *pageSize,
		Logger:        logger.Named("backfill"),
	})
	res, err := backfiller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("backfill failed", zap.Error(err))
	}
	if res != nil {
		logger.Info("backfill complete",
			zap.Int("signatures", res.Signatures),
			zap.Int("transactions", res.Transactions),
			zap.Int("events", res.Events),
			zap.Int("duplicates", res.DuplicatesSkipped),
			zap.Duration("duration", res.Duration),
		)
	}

	if live == nil {
		return
	}

	logger.Info("following new transactions", zap.String("ws_endpoint", cfg.WSEndpoint))
	err = <-liveErr
	stats := live.Stats()
	logger.Info("live indexer stopped",
		zap.Int64("transactions", stats.TransactionsIndexed),
		zap.Int64("events", stats.EventsIndexed),
		zap.Int64("duplicates", stats.DuplicatesSkipped),
		zap.Int64("errors", stats.Errors),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("live indexer failed", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

// createStores creates the indexer stores, applying migrations when
// persistent storage is selected.
func createStores(ctx context.Context, cfg *config.Client, useMemory bool, logger *zap.Logger) (*indexStores, func(), error) {
	if useMemory {
		return &indexStores{
			transactions: memory.NewTransactionStore(),
			events:       memory.NewEscrowEventStore(),
			progress:     memory.NewIndexerProgressStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		return nil, nil, err
	}
	if _, err := migrations.RunPostgresMigrations(ctx, pool, logger.Named("migrations")); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// ClickHouse
	chConn, err := chstore.OpenDatabase(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if _, err := migrations.RunClickhouseMigrations(ctx, chConn, logger.Named("migrations")); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, err
	}

	stores := &indexStores{
		transactions: pgstore.NewTransactionStore(pool),
		progress:     pgstore.NewIndexerProgressStore(pool),
		events:       chstore.NewEscrowEventStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}
