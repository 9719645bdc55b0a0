// Package main runs escrowd: an in-process ledger with the escrow program
// deployed, served over Solana-compatible JSON-RPC and WebSocket, with an
// indexer writing every escrow transaction and event to storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"escrow-lab/internal/config"
	"escrow-lab/internal/indexer"
	"escrow-lab/internal/logging"
	"escrow-lab/internal/observability"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/rpcserver"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/storage"
	chstore "escrow-lab/internal/storage/clickhouse"
	"escrow-lab/internal/storage/memory"
	"escrow-lab/internal/storage/migrations"
	pgstore "escrow-lab/internal/storage/postgres"
	"escrow-lab/internal/svm"
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

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address for JSON-RPC, WebSocket and metrics")
	flag.StringVar(&cfg.ProgramKeypair, "program-keypair", cfg.ProgramKeypair, "Keypair file whose public key becomes the escrow program ID")
	flag.DurationVar(&cfg.SlotInterval, "slot-interval", cfg.SlotInterval, "Slot advance interval (0 disables the slot clock)")
	flag.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	flag.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for airdrop rate limiting (empty keeps buckets in memory)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(cfg.ShutdownTimeout + 5*time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("escrowd failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Server, logger *zap.Logger) error {
	program, err := loadProgram(cfg.ProgramKeypair)
	if err != nil {
		return err
	}

	ledger := svm.New(
		svm.WithProgram(program),
		svm.WithFeePerSignature(cfg.FeePerSignature),
		svm.WithComputeBudget(cfg.ComputeBudget),
		svm.WithSubscriptionQueue(cfg.SubscriptionQueue),
		svm.WithLogger(logger.Named("svm")),
	)
	logger.Info("ledger ready",
		zap.Stringer("program_id", program.ID()),
		zap.Stringer("blockhash", ledger.LatestBlockhash()),
	)

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	limiter, closeLimiter, err := createLimiter(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}
	defer closeLimiter()

	writer := indexer.NewWriter(indexer.WriterOptions{
		TransactionStore: stores.transactions,
		EventStore:       stores.events,
		ProgressStore:    stores.progress,
		ProgramID:        program.ID(),
		Logger:           logger.Named("writer"),
	})
	runner := indexer.NewRunner(indexer.RunnerOptions{
		Source:        indexer.NewLedgerSource(ledger, solana.LogsFilter{Mentions: []string{program.ID().String()}}),
		Writer:        writer,
		BatchSize:     cfg.IndexerBatchSize,
		FlushInterval: cfg.IndexerFlushInterval,
		Logger:        logger.Named("indexer"),
	})

	server := rpcserver.New(rpcserver.Options{
		Ledger:             ledger,
		Limiter:            limiter,
		MaxAirdropLamports: cfg.AirdropMaxLamports,
		Logger:             logger.Named("rpc"),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("indexer: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSlotClock(ctx, ledger, cfg.SlotInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := server.ListenAndServe(ctx, cfg.Addr, rpcserver.HTTPConfig{
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
		})
		if err != nil {
			errCh <- err
		}
	}()

	// Stop everything on the first failure, then wait for the indexer to
	// flush before the stores are closed.
	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
		cancel()
	}
	wg.Wait()

	stats := runner.Stats()
	logger.Info("indexer stopped",
		zap.Int64("transactions", stats.TransactionsIndexed),
		zap.Int64("events", stats.EventsIndexed),
		zap.Int64("duplicates", stats.DuplicatesSkipped),
		zap.Int64("errors", stats.Errors),
	)
	return runErr
}

// loadProgram deploys the escrow program at the default ID, or at the public
// key of the given keypair file.
func loadProgram(keypairPath string) (*escrow.Program, error) {
	if keypairPath == "" {
		return escrow.New(), nil
	}
	kp, err := solana.ReadKeypairFile(keypairPath)
	if err != nil {
		return nil, fmt.Errorf("read program keypair: %w", err)
	}
	return escrow.NewWithID(kp.PublicKey()), nil
}

// runSlotClock advances the slot, rotating the blockhash, every interval.
func runSlotClock(ctx context.Context, ledger *svm.SVM, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ledger.ExpireBlockhash()
			observability.SetSlot(ledger.Slot())
		}
	}
}

// createStores creates the indexer stores, applying migrations when
// persistent storage is selected.
func createStores(ctx context.Context, cfg *config.Server, logger *zap.Logger) (*indexStores, func(), error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
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

// createLimiter returns the airdrop rate limiter: Redis-backed when a URL is
// configured, otherwise in memory.
func createLimiter(ctx context.Context, cfg *config.Server, logger *zap.Logger) (rpcserver.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		return rpcserver.NewMemoryLimiter(cfg.AirdropBurst, cfg.AirdropRefill), func() {}, nil
	}

	client, err := rpcserver.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("airdrop rate limiting backed by redis")

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis client", zap.Error(err))
		}
	}
	return rpcserver.NewRedisLimiter(client, cfg.AirdropBurst, cfg.AirdropRefill), cleanup, nil
}
