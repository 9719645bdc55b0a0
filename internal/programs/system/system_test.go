package system_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"escrow-lab/internal/harness"
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

func TestCreateAccount(t *testing.T) {
	ctx, err := harness.New().Build()
	require.NoError(t, err)
	owner := solana.NewKeypair().PublicKey()
	account := solana.NewKeypair()
	lamports := ctx.SVM.MinimumBalanceForRentExemption(10)

	res, err := ctx.ExecuteInstruction(system.CreateAccount(ctx.Payer.PublicKey(), account.PublicKey(), lamports, 10, owner), ctx.Payer, account)
	require.NoError(t, err)
	res.AssertSuccess(t)
	ctx.AssertAccountOwner(t, account.PublicKey(), owner)
	ctx.AssertSolBalance(t, account.PublicKey(), lamports)

	res, err = ctx.ExecuteInstruction(system.CreateAccount(ctx.Payer.PublicKey(), account.PublicKey(), lamports, 10, owner), ctx.Payer, account)
	require.NoError(t, err)
	res.AssertError(t, system.ErrAccountAlreadyInUse)
	res.AssertLog(t, "already in use")
}

func TestTransfer(t *testing.T) {
	ctx, err := harness.New().Build()
	require.NoError(t, err)
	from, err := ctx.CreateFundedAccount(2_000_000_000)
	require.NoError(t, err)
	to := solana.NewKeypair().PublicKey()

	res, err := ctx.ExecuteInstruction(system.Transfer(from.PublicKey(), to, 1_000_000_000), from)
	require.NoError(t, err)
	res.AssertSuccess(t)
	ctx.AssertSolBalance(t, to, 1_000_000_000)
	ctx.AssertSolBalance(t, from.PublicKey(), 1_000_000_000-5_000)

	res, err = ctx.ExecuteInstruction(system.Transfer(from.PublicKey(), to, 5_000_000_000), from)
	require.NoError(t, err)
	res.AssertError(t, system.ErrResultWithNegativeLamports)
}

func TestAllocateAndAssign(t *testing.T) {
	ctx, err := harness.New().Build()
	require.NoError(t, err)
	account, err := ctx.CreateFundedAccount(ctx.SVM.MinimumBalanceForRentExemption(64))
	require.NoError(t, err)
	owner := solana.NewKeypair().PublicKey()

	res, err := ctx.ExecuteInstructions([]solana.Instruction{
		system.Allocate(account.PublicKey(), 64),
		system.Assign(account.PublicKey(), owner),
	}, ctx.Payer, account)
	require.NoError(t, err)
	res.AssertSuccess(t)
	ctx.AssertAccountOwner(t, account.PublicKey(), owner)

	big := solana.NewKeypair()
	res, err = ctx.ExecuteInstruction(system.Allocate(big.PublicKey(), vm.MaxPermittedDataLength+1), ctx.Payer, big)
	require.NoError(t, err)
	res.AssertError(t, system.ErrInvalidAccountDataLength)
}
