package escrow

import (
	"escrow-lab/internal/anchor"
	"escrow-lab/internal/programs/ata"
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

const makeArgsSize = 3 * 8

// processMake opens an escrow: it creates the escrow state and its vault and
// moves the deposit out of the maker's mint A account.
//
// Accounts:
//
//	0. maker (writable, signer)
//	1. escrow (writable, PDA ["escrow", maker, seed])
//	2. mint_a
//	3. mint_b
//	4. maker_ata_a (writable)
//	5. vault (writable, associated token account of escrow for mint_a)
//	6. associated_token_program
//	7. token_program
//	8. system_program
func processMake(ctx vm.Context, body []byte) error {
	var args MakeArgs
	if len(body) < makeArgsSize || anchor.Decode(body[:makeArgsSize], &args) != nil {
		return anchor.ErrInstructionDidNotDeserialize
	}

	accounts := ctx.Accounts()
	if len(accounts) < 9 {
		return anchor.ErrAccountNotEnoughKeys
	}
	maker, escrow, mintAInfo, mintBInfo := accounts[0], accounts[1], accounts[2], accounts[3]
	makerAtaA, vault := accounts[4], accounts[5]

	if err := requireSigner(maker, "maker"); err != nil {
		return err
	}
	mintA, err := loadMint(mintAInfo, "mint_a")
	if err != nil {
		return err
	}
	if _, err := loadMint(mintBInfo, "mint_b"); err != nil {
		return err
	}
	makerAtaAState, err := loadTokenAccount(makerAtaA, "maker_ata_a")
	if err != nil {
		return err
	}
	if err := requireProgram(accounts[6], solana.AssociatedTokenProgramID, "associated_token_program"); err != nil {
		return err
	}
	if err := requireProgram(accounts[7], solana.TokenProgramID, "token_program"); err != nil {
		return err
	}
	if err := requireProgram(accounts[8], solana.SystemProgramID, "system_program"); err != nil {
		return err
	}

	if err := requireMut(maker, "maker"); err != nil {
		return err
	}
	if err := requireMut(escrow, "escrow"); err != nil {
		return err
	}
	addr, bump, err := FindEscrowAddressFor(ctx.ProgramID(), maker.Key, args.Seed)
	if err != nil || addr != escrow.Key {
		return anchor.ErrConstraintSeeds.WithAccount("escrow")
	}
	state := &Escrow{
		Seed:    args.Seed,
		Maker:   maker.Key,
		MintA:   mintAInfo.Key,
		MintB:   mintBInfo.Key,
		Receive: args.Receive,
		Bump:    bump,
	}
	if err := system.CreatePDAAccount(ctx, maker, escrow, EscrowSize, ctx.ProgramID(), state.SignerSeeds()); err != nil {
		return err
	}

	if err := requireMut(makerAtaA, "maker_ata_a"); err != nil {
		return err
	}
	if err := checkAssociated(makerAtaA, makerAtaAState, mintAInfo.Key, maker.Key, "maker_ata_a"); err != nil {
		return err
	}

	if err := requireMut(vault, "vault"); err != nil {
		return err
	}
	if expected, err := FindVaultAddress(escrow.Key, mintAInfo.Key); err != nil || expected != vault.Key {
		return anchor.ErrConstraintAssociated.WithAccount("vault")
	}
	if err := ctx.Invoke(ata.Create(maker.Key, escrow.Key, mintAInfo.Key)); err != nil {
		return err
	}

	if args.Amount == 0 || args.Receive == 0 {
		return ErrInvalidAmount
	}
	if mintAInfo.Key == mintBInfo.Key {
		return ErrSameMint
	}

	data, err := state.Pack()
	if err != nil {
		return err
	}
	copy(escrow.Data, data)

	if err := ctx.Invoke(token.TransferChecked(
		makerAtaA.Key, mintAInfo.Key, vault.Key, maker.Key, args.Amount, mintA.Decimals,
	)); err != nil {
		return err
	}

	return anchor.Emit(ctx, EscrowMade{
		Escrow:  escrow.Key,
		Maker:   maker.Key,
		MintA:   mintAInfo.Key,
		MintB:   mintBInfo.Key,
		Seed:    args.Seed,
		Deposit: args.Amount,
		Receive: args.Receive,
	})
}
