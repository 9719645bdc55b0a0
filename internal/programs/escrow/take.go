package escrow

import (
	"escrow-lab/internal/anchor"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// processTake completes the swap. The taker pays receive units of mint B to
// the maker and gets the whole vault; vault and escrow rent go to the maker.
//
// Accounts:
//
//	 0. taker (writable, signer)
//	 1. maker (writable)
//	 2. escrow (writable)
//	 3. mint_a
//	 4. mint_b
//	 5. vault (writable)
//	 6. taker_ata_a (writable, created if missing, taker pays)
//	 7. taker_ata_b (writable)
//	 8. maker_ata_b (writable, created if missing, taker pays)
//	 9. associated_token_program
//	10. token_program
//	11. system_program
func processTake(ctx vm.Context) error {
	accounts := ctx.Accounts()
	if len(accounts) < 12 {
		return anchor.ErrAccountNotEnoughKeys
	}
	taker, maker, escrow := accounts[0], accounts[1], accounts[2]
	mintAInfo, mintBInfo, vault := accounts[3], accounts[4], accounts[5]
	takerAtaA, takerAtaB, makerAtaB := accounts[6], accounts[7], accounts[8]

	if err := requireSigner(taker, "taker"); err != nil {
		return err
	}
	if err := requireSystemAccount(maker, "maker"); err != nil {
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
	mintB, err := loadMint(mintBInfo, "mint_b")
	if err != nil {
		return err
	}
	vaultState, err := loadTokenAccount(vault, "vault")
	if err != nil {
		return err
	}
	takerAtaBState, err := loadTokenAccount(takerAtaB, "taker_ata_b")
	if err != nil {
		return err
	}
	if err := requireProgram(accounts[9], solana.AssociatedTokenProgramID, "associated_token_program"); err != nil {
		return err
	}
	if err := requireProgram(accounts[10], solana.TokenProgramID, "token_program"); err != nil {
		return err
	}
	if err := requireProgram(accounts[11], solana.SystemProgramID, "system_program"); err != nil {
		return err
	}

	if err := requireMut(taker, "taker"); err != nil {
		return err
	}
	if err := requireMut(maker, "maker"); err != nil {
		return err
	}
	if err := checkEscrow(ctx, state, escrow, maker, mintAInfo, mintBInfo); err != nil {
		return err
	}
	if err := requireMut(vault, "vault"); err != nil {
		return err
	}
	if err := checkAssociated(vault, vaultState, mintAInfo.Key, escrow.Key, "vault"); err != nil {
		return err
	}
	if err := initIfNeeded(ctx, taker, takerAtaA, taker.Key, mintAInfo.Key, "taker_ata_a"); err != nil {
		return err
	}
	if err := requireMut(takerAtaB, "taker_ata_b"); err != nil {
		return err
	}
	if err := checkAssociated(takerAtaB, takerAtaBState, mintBInfo.Key, taker.Key, "taker_ata_b"); err != nil {
		return err
	}
	if err := initIfNeeded(ctx, taker, makerAtaB, maker.Key, mintBInfo.Key, "maker_ata_b"); err != nil {
		return err
	}

	if err := ctx.Invoke(token.TransferChecked(
		takerAtaB.Key, mintBInfo.Key, makerAtaB.Key, taker.Key, state.Receive, mintB.Decimals,
	)); err != nil {
		return err
	}

	seeds := state.SignerSeeds()
	amount := vaultState.Amount
	if err := ctx.InvokeSigned(token.TransferChecked(
		vault.Key, mintAInfo.Key, takerAtaA.Key, escrow.Key, amount, mintA.Decimals,
	), seeds); err != nil {
		return err
	}
	if err := ctx.InvokeSigned(token.CloseAccount(vault.Key, maker.Key, escrow.Key), seeds); err != nil {
		return err
	}

	if err := anchor.Emit(ctx, EscrowTaken{
		Escrow:  escrow.Key,
		Maker:   maker.Key,
		Taker:   taker.Key,
		MintA:   mintAInfo.Key,
		MintB:   mintBInfo.Key,
		Seed:    state.Seed,
		Amount:  amount,
		Receive: state.Receive,
	}); err != nil {
		return err
	}
	return closeEscrow(escrow, maker)
}
