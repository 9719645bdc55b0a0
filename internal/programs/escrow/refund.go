package escrow

import (
	"escrow-lab/internal/anchor"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// processRefund cancels an open escrow and returns the deposit and all rent
// to the maker.
//
// Accounts:
//
//	0. maker (writable, signer)
//	1. escrow (writable)
//	2. mint_a
//	3. vault (writable)
//	4. maker_ata_a (writable, created if missing)
//	5. associated_token_program
//	6. token_program
//	7. system_program
func processRefund(ctx vm.Context) error {
	accounts := ctx.Accounts()
	if len(accounts) < 8 {
		return anchor.ErrAccountNotEnoughKeys
	}
	maker, escrow, mintAInfo, vault, makerAtaA := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if err := requireSigner(maker, "maker"); err != nil {
		return err
	}
	state, err := loadEscrow(ctx, escrow)
	if err != nil {
		return err
	}
	mintA, err := loadMint(mintAInfo, "mint_a")
	if err != nil {
		return err
	}
	vaultState, err := loadTokenAccount(vault, "vault")
	if err != nil {
		return err
	}
	if err := requireProgram(accounts[5], solana.AssociatedTokenProgramID, "associated_token_program"); err != nil {
		return err
	}
	if err := requireProgram(accounts[6], solana.TokenProgramID, "token_program"); err != nil {
		return err
	}
	if err := requireProgram(accounts[7], solana.SystemProgramID, "system_program"); err != nil {
		return err
	}

	if err := requireMut(maker, "maker"); err != nil {
		return err
	}
	if err := checkEscrow(ctx, state, escrow, maker, mintAInfo, nil); err != nil {
		return err
	}
	if err := requireMut(vault, "vault"); err != nil {
		return err
	}
	if err := checkAssociated(vault, vaultState, mintAInfo.Key, escrow.Key, "vault"); err != nil {
		return err
	}
	if err := initIfNeeded(ctx, maker, makerAtaA, maker.Key, mintAInfo.Key, "maker_ata_a"); err != nil {
		return err
	}

	seeds := state.SignerSeeds()
	amount := vaultState.Amount
	if err := ctx.InvokeSigned(token.TransferChecked(
		vault.Key, mintAInfo.Key, makerAtaA.Key, escrow.Key, amount, mintA.Decimals,
	), seeds); err != nil {
		return err
	}
	if err := ctx.InvokeSigned(token.CloseAccount(vault.Key, maker.Key, escrow.Key), seeds); err != nil {
		return err
	}

	if err := anchor.Emit(ctx, EscrowRefunded{
		Escrow: escrow.Key,
		Maker:  maker.Key,
		MintA:  mintAInfo.Key,
		Seed:   state.Seed,
		Amount: amount,
	}); err != nil {
		return err
	}
	return closeEscrow(escrow, maker)
}
