package escrow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"escrow-lab/internal/anchor"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

func TestMakeConstraints(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, accounts *escrow.MakeAccounts, args *escrow.MakeArgs)
		patch  func(ix *solana.Instruction)
		code   uint32
	}{
		{
			name:   "zero amount",
			mutate: func(_ *fixture, _ *escrow.MakeAccounts, args *escrow.MakeArgs) { args.Amount = 0 },
			code:   escrow.ErrInvalidAmount.Code,
		},
		{
			name:   "zero receive",
			mutate: func(_ *fixture, _ *escrow.MakeAccounts, args *escrow.MakeArgs) { args.Receive = 0 },
			code:   escrow.ErrInvalidAmount.Code,
		},
		{
			name:   "same mint",
			mutate: func(f *fixture, accounts *escrow.MakeAccounts, _ *escrow.MakeArgs) { accounts.MintB = f.mintA },
			code:   escrow.ErrSameMint.Code,
		},
		{
			name:   "seed does not match escrow",
			mutate: func(_ *fixture, _ *escrow.MakeAccounts, args *escrow.MakeArgs) { args.Seed = 7 },
			code:   anchor.ErrConstraintSeeds.Code,
		},
		{
			name: "vault is not the escrow's associated account",
			mutate: func(_ *fixture, accounts *escrow.MakeAccounts, _ *escrow.MakeArgs) {
				accounts.Vault = solana.NewKeypair().PublicKey()
			},
			code: anchor.ErrConstraintAssociated.Code,
		},
		{
			name: "wrong token program",
			mutate: func(_ *fixture, accounts *escrow.MakeAccounts, _ *escrow.MakeArgs) {
				accounts.TokenProgram = solana.NewKeypair().PublicKey()
			},
			code: anchor.ErrInvalidProgramID.Code,
		},
		{
			name: "mint not owned by token program",
			mutate: func(_ *fixture, accounts *escrow.MakeAccounts, _ *escrow.MakeArgs) {
				accounts.MintB = solana.NewKeypair().PublicKey()
			},
			code: anchor.ErrAccountOwnedByWrongProgram.Code,
		},
		{
			name: "maker token account owned by someone else",
			mutate: func(f *fixture, accounts *escrow.MakeAccounts, _ *escrow.MakeArgs) {
				other, err := f.CreateAssociatedTokenAccount(f.mintA, f.taker.PublicKey())
				if err != nil {
					panic(err)
				}
				accounts.MakerAtaA = other
			},
			code: anchor.ErrConstraintTokenOwner.Code,
		},
		{
			name:  "maker does not sign",
			patch: func(ix *solana.Instruction) { ix.Accounts[0].IsSigner = false },
			code:  anchor.ErrConstraintSigner.Code,
		},
		{
			name:  "escrow not writable",
			patch: func(ix *solana.Instruction) { ix.Accounts[1].IsWritable = false },
			code:  anchor.ErrConstraintMut.Code,
		},
		{
			name:  "missing accounts",
			patch: func(ix *solana.Instruction) { ix.Accounts = ix.Accounts[:8] },
			code:  anchor.ErrAccountNotEnoughKeys.Code,
		},
		{
			name:  "truncated args",
			patch: func(ix *solana.Instruction) { ix.Data = ix.Data[:12] },
			code:  anchor.ErrInstructionDidNotDeserialize.Code,
		},
		{
			name:  "unknown instruction",
			patch: func(ix *solana.Instruction) { copy(ix.Data, anchor.InstructionDiscriminator("cancel").Bytes()) },
			code:  anchor.ErrInstructionFallbackNotFound.Code,
		},
		{
			name:  "no discriminator",
			patch: func(ix *solana.Instruction) { ix.Data = ix.Data[:4] },
			code:  anchor.ErrInstructionMissing.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			accounts := f.makeAccounts(t, seed)
			args := escrow.MakeArgs{Seed: seed, Receive: receive, Amount: deposit}
			if tt.mutate != nil {
				tt.mutate(f, &accounts, &args)
			}
			ix, err := f.client.Make(accounts, args)
			require.NoError(t, err)
			if tt.patch != nil {
				tt.patch(&ix)
			}

			// The fixture payer covers the fee so the maker's signature is optional.
			signers := []*solana.Keypair{f.Payer}
			if ix.Accounts[0].IsSigner {
				signers = append(signers, f.maker)
			}
			res, err := f.ExecuteInstruction(ix, signers...)
			require.NoError(t, err)
			res.AssertErrorCode(t, tt.code)
			f.AssertTokenBalance(t, f.makerAtaA, makerTokens)
			f.AssertAccountClosed(t, accounts.Escrow)
		})
	}
}

func TestMakeConstraintLogsAccount(t *testing.T) {
	f := setup(t)
	accounts := f.makeAccounts(t, seed)
	ix, err := f.client.Make(accounts, escrow.MakeArgs{Seed: 7, Receive: receive, Amount: deposit})
	require.NoError(t, err)

	res, err := f.ExecuteInstruction(ix, f.maker)
	require.NoError(t, err)
	res.AssertLog(t, "AnchorError caused by account: escrow. Error Code: ConstraintSeeds. Error Number: 2006.")
	res.AssertError(t, vm.CustomError(2006))
}

func TestTakeConstraints(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, accounts *escrow.TakeAccounts)
		code   uint32
	}{
		{
			name: "maker does not match escrow",
			mutate: func(_ *fixture, accounts *escrow.TakeAccounts) {
				accounts.Maker = solana.NewKeypair().PublicKey()
			},
			code: anchor.ErrConstraintHasOne.Code,
		},
		{
			name: "mint b does not match escrow",
			mutate: func(f *fixture, accounts *escrow.TakeAccounts) {
				other, err := f.CreateTokenMint(f.taker, 9)
				if err != nil {
					panic(err)
				}
				accounts.MintB = other
			},
			code: anchor.ErrConstraintHasOne.Code,
		},
		{
			name: "escrow not initialized",
			mutate: func(_ *fixture, accounts *escrow.TakeAccounts) {
				accounts.Escrow = solana.NewKeypair().PublicKey()
			},
			code: anchor.ErrAccountNotInitialized.Code,
		},
		{
			name: "escrow owned by another program",
			mutate: func(f *fixture, accounts *escrow.TakeAccounts) {
				acct, _ := f.SVM.GetAccount(accounts.Escrow)
				acct.Owner = solana.TokenProgramID
				f.SVM.SetAccount(accounts.Escrow, acct)
			},
			code: anchor.ErrAccountOwnedByWrongProgram.Code,
		},
		{
			name: "escrow discriminator mismatch",
			mutate: func(f *fixture, accounts *escrow.TakeAccounts) {
				acct, _ := f.SVM.GetAccount(accounts.Escrow)
				acct.Data[0] ^= 0xff
				f.SVM.SetAccount(accounts.Escrow, acct)
			},
			code: anchor.ErrAccountDiscriminatorMismatch.Code,
		},
		{
			name: "taker account for the wrong mint",
			mutate: func(_ *fixture, accounts *escrow.TakeAccounts) {
				accounts.TakerAtaA = solana.MustAssociatedTokenAddress(accounts.Taker, accounts.MintB)
			},
			code: anchor.ErrConstraintAssociated.Code,
		},
		{
			name: "wrong system program",
			mutate: func(_ *fixture, accounts *escrow.TakeAccounts) {
				accounts.SystemProgram = solana.TokenProgramID
			},
			code: anchor.ErrInvalidProgramID.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.make(t, seed).AssertSuccess(t)

			accounts := f.takeAccounts(t, seed)
			tt.mutate(f, &accounts)
			ix, err := f.client.Take(accounts)
			require.NoError(t, err)

			res, err := f.ExecuteInstruction(ix, f.taker)
			require.NoError(t, err)
			res.AssertErrorCode(t, tt.code)
			f.AssertTokenBalance(t, f.takerAtaB, takerTokens)
		})
	}
}

func TestTakeWithoutEnoughMintB(t *testing.T) {
	f := setup(t)
	f.make(t, seed).AssertSuccess(t)

	poor, err := f.CreateFundedAccount(10 * sol)
	require.NoError(t, err)
	poorAtaB, err := f.CreateAssociatedTokenAccount(f.mintB, poor.PublicKey())
	require.NoError(t, err)
	require.NoError(t, f.MintTo(f.mintB, poorAtaB, f.taker, receive-1))

	accounts, err := f.client.TakeAccounts(poor.PublicKey(), f.maker.PublicKey(), f.mintA, f.mintB, seed)
	require.NoError(t, err)
	ix, err := f.client.Take(accounts)
	require.NoError(t, err)

	res, err := f.ExecuteInstruction(ix, poor)
	require.NoError(t, err)
	res.AssertError(t, token.ErrInsufficientFunds)

	vault := f.makeAccounts(t, seed).Vault
	f.AssertTokenBalance(t, vault, deposit)
	f.AssertTokenBalance(t, poorAtaB, receive-1)
}

func TestRefundByOtherSigner(t *testing.T) {
	f := setup(t)
	f.make(t, seed).AssertSuccess(t)

	accounts := f.refundAccounts(t, seed)
	accounts.Maker = f.taker.PublicKey()
	accounts.MakerAtaA = solana.MustAssociatedTokenAddress(f.taker.PublicKey(), f.mintA)
	ix, err := f.client.Refund(accounts)
	require.NoError(t, err)

	res, err := f.ExecuteInstruction(ix, f.taker)
	require.NoError(t, err)
	res.AssertErrorCode(t, anchor.ErrConstraintHasOne.Code)
	f.AssertAccountExists(t, accounts.Escrow)
}
