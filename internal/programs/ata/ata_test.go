package ata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/harness"
	"escrow-lab/internal/programs/ata"
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

func setup(t *testing.T) (*harness.Context, solana.PublicKey) {
	t.Helper()
	ctx, err := harness.New().Build()
	require.NoError(t, err)
	mint, err := harness.NewCreateMint(ctx.SVM, ctx.Payer).Decimals(9).Send()
	require.NoError(t, err)
	return ctx, mint
}

func TestCreate(t *testing.T) {
	ctx, mint := setup(t)
	wallet := solana.NewKeypair().PublicKey()

	res, err := ctx.ExecuteInstruction(ata.Create(ctx.Payer.PublicKey(), wallet, mint))
	require.NoError(t, err)
	res.AssertSuccess(t)
	res.AssertLog(t, "Program log: Create")
	res.AssertLog(t, "Program log: Initialize the associated token account")

	addr := solana.MustAssociatedTokenAddress(wallet, mint)
	ctx.AssertAccountOwner(t, addr, solana.TokenProgramID)
	ctx.AssertTokenBalance(t, addr, 0)
	ctx.AssertSolBalance(t, addr, ctx.SVM.MinimumBalanceForRentExemption(token.AccountSize))

	acct, ok := ctx.SVM.GetAccount(addr)
	require.True(t, ok)
	state, err := token.UnpackAccount(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, wallet, state.Owner)
	assert.Equal(t, mint, state.Mint)

	res, err = ctx.ExecuteInstruction(ata.Create(ctx.Payer.PublicKey(), wallet, mint))
	require.NoError(t, err)
	res.AssertError(t, system.ErrAccountAlreadyInUse)

	res, err = ctx.ExecuteInstruction(ata.CreateIdempotent(ctx.Payer.PublicKey(), wallet, mint))
	require.NoError(t, err)
	res.AssertSuccess(t)
}

func TestCreatePrefundedAddress(t *testing.T) {
	ctx, mint := setup(t)
	wallet := solana.NewKeypair().PublicKey()
	addr := solana.MustAssociatedTokenAddress(wallet, mint)

	_, err := ctx.SVM.Airdrop(addr, 1_000_000)
	require.NoError(t, err)

	_, err = harness.NewCreateAssociatedTokenAccount(ctx.SVM, ctx.Payer, mint).Owner(wallet).Send()
	require.NoError(t, err)
	ctx.AssertSolBalance(t, addr, ctx.SVM.MinimumBalanceForRentExemption(token.AccountSize))
	ctx.AssertAccountOwner(t, addr, solana.TokenProgramID)
}

func TestCreateRejectsWrongAddress(t *testing.T) {
	ctx, mint := setup(t)
	ix := ata.Create(ctx.Payer.PublicKey(), solana.NewKeypair().PublicKey(), mint)
	ix.Accounts[1].PublicKey = solana.NewKeypair().PublicKey()

	res, err := ctx.ExecuteInstruction(ix)
	require.NoError(t, err)
	res.AssertError(t, vm.ErrInvalidSeeds)
	res.AssertLog(t, "Associated address does not match seed derivation")
}

func TestCreateRejectsNonMint(t *testing.T) {
	ctx, _ := setup(t)
	res, err := ctx.ExecuteInstruction(ata.Create(ctx.Payer.PublicKey(), solana.NewKeypair().PublicKey(), solana.NewKeypair().PublicKey()))
	require.NoError(t, err)
	res.AssertError(t, vm.ErrIncorrectProgramID)
}
