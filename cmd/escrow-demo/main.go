// Package main runs an escrow round trip against a running escrowd using only
// its JSON-RPC interface: fund two wallets, create both mints, open an
// escrow, then take or refund it.
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
	"escrow-lab/internal/logging"
	"escrow-lab/internal/programs/ata"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
)

const decimals = 6

// demo holds the wallets and mints of one round trip.
type demo struct {
	rpc    solana.RPCClient
	client *escrow.Client
	logger *zap.Logger

	maker *solana.Keypair
	taker *solana.Keypair
	mintA *solana.Keypair
	mintB *solana.Keypair
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
	programID := flag.String("program-id", escrow.ProgramID.String(), "Escrow program ID")
	mode := flag.String("mode", "take", "How to close the escrow: take or refund")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Escrow seed")
	deposit := flag.Uint64("deposit", 1_000_000, "Mint A base units the maker deposits")
	receive := flag.Uint64("receive", 2_500_000, "Mint B base units the maker asks for")
	airdrop := flag.Uint64("airdrop", 2_000_000_000, "Lamports airdropped to each wallet")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if *mode != "take" && *mode != "refund" {
		logger.Fatal("--mode must be take or refund", zap.String("mode", *mode))
	}
	program, err := solana.ParsePublicKey(*programID)
	if err != nil {
		logger.Fatal("invalid --program-id", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &demo{
		rpc:    solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithTimeout(cfg.RequestTimeout)),
		client: escrow.NewClient(program),
		logger: logger,
		maker:  solana.NewKeypair(),
		taker:  solana.NewKeypair(),
		mintA:  solana.NewKeypair(),
		mintB:  solana.NewKeypair(),
	}

	if err := d.run(ctx, *mode, *seed, *deposit, *receive, *airdrop); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted")
			os.Exit(1)
		}
		logger.Fatal("demo failed", zap.Error(err))
	}
}

func (d *demo) run(ctx context.Context, mode string, seed, deposit, receive, airdrop uint64) error {
	d.logger.Info("wallets",
		zap.Stringer("maker", d.maker.PublicKey()),
		zap.Stringer("taker", d.taker.PublicKey()),
	)

	for _, kp := range []*solana.Keypair{d.maker, d.taker} {
		sig, err := d.rpc.RequestAirdrop(ctx, kp.PublicKey(), airdrop)
		if err != nil {
			return fmt.Errorf("airdrop %s: %w", kp.PublicKey(), err)
		}
		d.logger.Debug("airdrop", zap.Stringer("to", kp.PublicKey()), zap.Stringer("signature", sig))
	}

	if err := d.createMint(ctx, d.maker, d.mintA, deposit); err != nil {
		return fmt.Errorf("mint A: %w", err)
	}
	if err := d.createMint(ctx, d.taker, d.mintB, receive); err != nil {
		return fmt.Errorf("mint B: %w", err)
	}

	makeAccounts, err := d.client.MakeAccounts(d.maker.PublicKey(), d.mintA.PublicKey(), d.mintB.PublicKey(), seed)
	if err != nil {
		return err
	}
	makeIx, err := d.client.Make(makeAccounts, escrow.MakeArgs{Seed: seed, Receive: receive, Amount: deposit})
	if err != nil {
		return err
	}
	if _, err := d.send(ctx, "make", d.maker, nil, makeIx); err != nil {
		return err
	}
	if err := d.showEscrow(ctx, makeAccounts.Escrow); err != nil {
		return err
	}

	switch mode {
	case "take":
		accounts, err := d.client.TakeAccounts(d.taker.PublicKey(), d.maker.PublicKey(), d.mintA.PublicKey(), d.mintB.PublicKey(), seed)
		if err != nil {
			return err
		}
		ix, err := d.client.Take(accounts)
		if err != nil {
			return err
		}
		if _, err := d.send(ctx, "take", d.taker, nil, ix); err != nil {
			return err
		}
		return d.showBalances(ctx, map[string]solana.PublicKey{
			"maker_ata_b": accounts.MakerAtaB,
			"taker_ata_a": accounts.TakerAtaA,
			"taker_ata_b": accounts.TakerAtaB,
		})
	default:
		accounts, err := d.client.RefundAccounts(d.maker.PublicKey(), d.mintA.PublicKey(), seed)
		if err != nil {
			return err
		}
		ix, err := d.client.Refund(accounts)
		if err != nil {
			return err
		}
		if _, err := d.send(ctx, "refund", d.maker, nil, ix); err != nil {
			return err
		}
		return d.showBalances(ctx, map[string]solana.PublicKey{
			"maker_ata_a": accounts.MakerAtaA,
		})
	}
}

// createMint creates mint with owner as authority and mints supply into the
// owner's associated token account.
func (d *demo) createMint(ctx context.Context, owner, mint *solana.Keypair, supply uint64) error {
	rent, err := d.rpc.GetMinimumBalanceForRentExemption(ctx, token.MintSize)
	if err != nil {
		return err
	}
	ixs := []solana.Instruction{
		system.CreateAccount(owner.PublicKey(), mint.PublicKey(), rent, token.MintSize, solana.TokenProgramID),
		token.InitializeMint2(mint.PublicKey(), decimals, owner.PublicKey(), nil),
		ata.Create(owner.PublicKey(), owner.PublicKey(), mint.PublicKey()),
		token.MintTo(mint.PublicKey(), solana.MustAssociatedTokenAddress(owner.PublicKey(), mint.PublicKey()), owner.PublicKey(), supply),
	}
	_, err = d.send(ctx, "create mint", owner, []*solana.Keypair{mint}, ixs...)
	return err
}

// send signs with a fresh blockhash, submits, and fails if the committed
// transaction reports an error.
func (d *demo) send(ctx context.Context, label string, payer *solana.Keypair, signers []*solana.Keypair, ixs ...solana.Instruction) (*solana.ConfirmedTransaction, error) {
	blockhash, err := d.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewSignedTransaction(ixs, payer, signers, blockhash)
	if err != nil {
		return nil, fmt.Errorf("%s: sign: %w", label, err)
	}
	sig, err := d.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	confirmed, err := d.rpc.GetTransaction(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("%s: get transaction: %w", label, err)
	}
	if confirmed == nil || confirmed.Meta == nil {
		return nil, fmt.Errorf("%s: transaction %s not found", label, sig)
	}
	if confirmed.Meta.Err != nil {
		return nil, fmt.Errorf("%s: transaction %s failed: %v", label, sig, confirmed.Meta.Err)
	}

	d.logger.Info(label,
		zap.Stringer("signature", sig),
		zap.Uint64("slot", confirmed.Slot),
		zap.Uint64("fee", confirmed.Meta.Fee),
		zap.Uint64("compute_units", confirmed.Meta.ComputeUnitsConsumed),
	)
	d.logEvents(confirmed.Meta.LogMessages)
	return confirmed, nil
}

func (d *demo) logEvents(logs []string) {
	events, err := escrow.ParseEvents(logs, d.client.ProgramID)
	if err != nil {
		d.logger.Warn("parse events", zap.Error(err))
		return
	}
	for _, ev := range events {
		d.logger.Info("event",
			zap.String("name", ev.Event.EventName()),
			zap.Int("log_index", ev.LogIndex),
			zap.Any("data", ev.Event),
		)
	}
}

func (d *demo) showEscrow(ctx context.Context, address solana.PublicKey) error {
	info, err := d.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("escrow %s not found", address)
	}
	data, err := info.AccountData()
	if err != nil {
		return err
	}
	state, err := escrow.UnpackEscrow(data)
	if err != nil {
		return err
	}
	d.logger.Info("escrow opened",
		zap.Stringer("address", address),
		zap.Uint64("seed", state.Seed),
		zap.Uint64("receive", state.Receive),
		zap.Uint64("lamports", info.Lamports),
	)
	return nil
}

func (d *demo) showBalances(ctx context.Context, accounts map[string]solana.PublicKey) error {
	for name, pk := range accounts {
		amount, err := d.rpc.GetTokenAccountBalance(ctx, pk)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", name, err)
		}
		d.logger.Info("token balance",
			zap.String("account", name),
			zap.String("amount", amount.Amount),
			zap.String("ui_amount", amount.UIAmountString),
		)
	}
	return nil
}
