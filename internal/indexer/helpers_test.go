package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/harness"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/solana"
)

const (
	sol     = 1_000_000_000
	deposit = 1_000_000_000
	receive = 500_000_000
)

// escrowLedger is a ledger with the escrow program and two funded parties
// holding tokens of opposite mints.
type escrowLedger struct {
	*harness.Context
	client    *escrow.Client
	maker     *solana.Keypair
	taker     *solana.Keypair
	mintA     solana.PublicKey
	mintB     solana.PublicKey
	makerAtaA solana.PublicKey
}

func newEscrowLedger(t *testing.T) *escrowLedger {
	t.Helper()
	ctx, err := harness.BuildWithProgram(escrow.New())
	require.NoError(t, err)

	l := &escrowLedger{Context: ctx, client: escrow.NewClient(escrow.ProgramID)}
	l.maker, err = ctx.CreateFundedAccount(10 * sol)
	require.NoError(t, err)
	l.taker, err = ctx.CreateFundedAccount(10 * sol)
	require.NoError(t, err)
	l.mintA, err = ctx.CreateTokenMint(l.maker, 9)
	require.NoError(t, err)
	l.mintB, err = ctx.CreateTokenMint(l.taker, 9)
	require.NoError(t, err)

	l.makerAtaA, err = ctx.CreateAssociatedTokenAccount(l.mintA, l.maker.PublicKey())
	require.NoError(t, err)
	takerAtaB, err := ctx.CreateAssociatedTokenAccount(l.mintB, l.taker.PublicKey())
	require.NoError(t, err)
	require.NoError(t, ctx.MintTo(l.mintA, l.makerAtaA, l.maker, 10*deposit))
	require.NoError(t, ctx.MintTo(l.mintB, takerAtaB, l.taker, 10*receive))
	return l
}

func (l *escrowLedger) escrowAddress(t *testing.T, seed uint64) solana.PublicKey {
	t.Helper()
	addr, _, err := escrow.FindEscrowAddress(l.maker.PublicKey(), seed)
	require.NoError(t, err)
	return addr
}

func (l *escrowLedger) make(t *testing.T, seed uint64) *harness.ExecutionResult {
	t.Helper()
	accounts, err := l.client.MakeAccounts(l.maker.PublicKey(), l.mintA, l.mintB, seed)
	require.NoError(t, err)
	ix, err := l.client.Make(accounts, escrow.MakeArgs{Seed: seed, Receive: receive, Amount: deposit})
	require.NoError(t, err)
	res, err := l.ExecuteInstruction(ix, l.maker)
	require.NoError(t, err)
	return res
}

func (l *escrowLedger) take(t *testing.T, seed uint64) *harness.ExecutionResult {
	t.Helper()
	accounts, err := l.client.TakeAccounts(l.taker.PublicKey(), l.maker.PublicKey(), l.mintA, l.mintB, seed)
	require.NoError(t, err)
	ix, err := l.client.Take(accounts)
	require.NoError(t, err)
	res, err := l.ExecuteInstruction(ix, l.taker)
	require.NoError(t, err)
	return res
}

func (l *escrowLedger) refund(t *testing.T, seed uint64) *harness.ExecutionResult {
	t.Helper()
	accounts, err := l.client.RefundAccounts(l.maker.PublicKey(), l.mintA, seed)
	require.NoError(t, err)
	ix, err := l.client.Refund(accounts)
	require.NoError(t, err)
	res, err := l.ExecuteInstruction(ix, l.maker)
	require.NoError(t, err)
	return res
}

func (l *escrowLedger) recordOf(t *testing.T, res *harness.ExecutionResult) *domain.TransactionRecord {
	t.Helper()
	ptx, ok := l.SVM.GetTransaction(res.Meta.Signature)
	require.True(t, ok)
	return RecordFromProcessed(ptx)
}
