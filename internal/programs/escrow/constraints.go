package escrow

import (
	"escrow-lab/internal/anchor"
	"escrow-lab/internal/programs/ata"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

func requireSigner(info *vm.AccountInfo, name string) error {
	if !info.IsSigner {
		return anchor.ErrConstraintSigner.WithAccount(name)
	}
	return nil
}

func requireMut(info *vm.AccountInfo, name string) error {
	if !info.IsWritable {
		return anchor.ErrConstraintMut.WithAccount(name)
	}
	return nil
}

func requireProgram(info *vm.AccountInfo, id solana.PublicKey, name string) error {
	if info.Key != id {
		return anchor.ErrInvalidProgramID.WithAccount(name)
	}
	return nil
}

func requireSystemAccount(info *vm.AccountInfo, name string) error {
	if !info.IsOwnedBy(solana.SystemProgramID) {
		return anchor.ErrAccountOwnedByWrongProgram.WithAccount(name)
	}
	return nil
}

func loadMint(info *vm.AccountInfo, name string) (*token.Mint, error) {
	if !info.IsOwnedBy(solana.TokenProgramID) {
		return nil, anchor.ErrAccountOwnedByWrongProgram.WithAccount(name)
	}
	m, err := token.UnpackMint(info.Data)
	if err != nil {
		return nil, anchor.ErrAccountDidNotDeserialize.WithAccount(name)
	}
	return m, nil
}

func loadTokenAccount(info *vm.AccountInfo, name string) (*token.Account, error) {
	if !info.IsOwnedBy(solana.TokenProgramID) {
		return nil, anchor.ErrAccountOwnedByWrongProgram.WithAccount(name)
	}
	a, err := token.UnpackAccount(info.Data)
	if err != nil {
		return nil, anchor.ErrAccountDidNotDeserialize.WithAccount(name)
	}
	return a, nil
}

// loadEscrow deserializes the escrow account.
func loadEscrow(ctx vm.Context, info *vm.AccountInfo) (*Escrow, error) {
	var state Escrow
	if err := anchor.LoadAccount(info, ctx.ProgramID(), escrowAccountName, "escrow", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// checkEscrow enforces the mut, has_one and seeds constraints of an existing
// escrow. mintB is nil for instructions that do not take it.
func checkEscrow(ctx vm.Context, state *Escrow, info, maker, mintA, mintB *vm.AccountInfo) error {
	if err := requireMut(info, "escrow"); err != nil {
		return err
	}
	if state.Maker != maker.Key || state.MintA != mintA.Key || (mintB != nil && state.MintB != mintB.Key) {
		return anchor.ErrConstraintHasOne.WithAccount("escrow")
	}
	addr, err := solana.CreateProgramAddress(state.SignerSeeds(), ctx.ProgramID())
	if err != nil || addr != info.Key {
		return anchor.ErrConstraintSeeds.WithAccount("escrow")
	}
	return nil
}

// checkAssociated enforces the associated_token constraint on an existing
// token account.
func checkAssociated(info *vm.AccountInfo, acct *token.Account, mint, authority solana.PublicKey, name string) error {
	if acct.Mint != mint {
		return anchor.ErrConstraintTokenMint.WithAccount(name)
	}
	if acct.Owner != authority {
		return anchor.ErrConstraintTokenOwner.WithAccount(name)
	}
	expected, _, err := solana.FindAssociatedTokenAddress(authority, mint)
	if err != nil || expected != info.Key {
		return anchor.ErrConstraintAssociated.WithAccount(name)
	}
	return nil
}

// initIfNeeded creates the associated token account of wallet for mint when
// info is still owned by the system program, funded or not, and validates it
// otherwise.
func initIfNeeded(ctx vm.Context, payer, info *vm.AccountInfo, wallet, mint solana.PublicKey, name string) error {
	if err := requireMut(info, name); err != nil {
		return err
	}
	expected, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil || expected != info.Key {
		return anchor.ErrConstraintAssociated.WithAccount(name)
	}
	if info.IsOwnedBy(solana.SystemProgramID) {
		return ctx.Invoke(ata.Create(payer.Key, wallet, mint))
	}
	acct, err := loadTokenAccount(info, name)
	if err != nil {
		return err
	}
	return checkAssociated(info, acct, mint, wallet, name)
}

// closeEscrow returns the escrow rent to dest and hands the emptied account
// back to the system program.
func closeEscrow(info, dest *vm.AccountInfo) error {
	if err := vm.MoveLamports(info, dest, info.Lamports); err != nil {
		return err
	}
	if err := info.Realloc(0); err != nil {
		return err
	}
	info.Owner = solana.SystemProgramID
	return nil
}
