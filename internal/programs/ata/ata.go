// Package ata implements the associated token account program.
package ata

import (
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// Instruction variants.
const (
	InstructionCreate           uint8 = 0
	InstructionCreateIdempotent uint8 = 1
)

// ErrInvalidOwner is returned when an existing account is owned by another wallet.
const ErrInvalidOwner = vm.CustomError(0)

const baseComputeUnits = 3500

// Program is the associated token account program.
type Program struct{}

var (
	_ vm.Program       = Program{}
	_ vm.ComputeCoster = Program{}
)

func (Program) ID() solana.PublicKey            { return solana.AssociatedTokenProgramID }
func (Program) Name() string                    { return "spl_associated_token_account" }
func (Program) ComputeUnits(data []byte) uint64 { return baseComputeUnits }

// Process handles Create and CreateIdempotent.
func (Program) Process(ctx vm.Context, data []byte) error {
	idempotent := false
	switch {
	case len(data) == 0 || (len(data) == 1 && data[0] == InstructionCreate):
		ctx.Log("Create")
	case len(data) == 1 && data[0] == InstructionCreateIdempotent:
		ctx.Log("CreateIdempotent")
		idempotent = true
	default:
		return vm.ErrInvalidInstructionData
	}

	accounts := ctx.Accounts()
	if len(accounts) < 6 {
		return vm.ErrNotEnoughAccountKeys
	}
	payer, ata, wallet, mint, tokenProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[5]

	if tokenProgram.Key != solana.TokenProgramID {
		return vm.ErrIncorrectProgramID
	}
	seeds := [][]byte{wallet.Key[:], tokenProgram.Key[:], mint.Key[:]}
	expected, bump, err := solana.FindProgramAddress(seeds, ctx.ProgramID())
	if err != nil {
		return vm.ErrInvalidSeeds
	}
	if expected != ata.Key {
		ctx.Log("Error: Associated address does not match seed derivation")
		return vm.ErrInvalidSeeds
	}

	if idempotent && ata.IsOwnedBy(solana.TokenProgramID) {
		existing, err := token.UnpackAccount(ata.Data)
		if err == nil {
			if existing.Owner != wallet.Key {
				ctx.Log("Error: Associated token account owner does not match address derivation")
				return ErrInvalidOwner
			}
			if existing.Mint != mint.Key {
				return vm.ErrInvalidAccountData
			}
			return nil
		}
	}

	if !mint.IsOwnedBy(solana.TokenProgramID) {
		return vm.ErrIncorrectProgramID
	}

	signer := append(seeds, []byte{bump})
	if err := system.CreatePDAAccount(ctx, payer, ata, token.AccountSize, solana.TokenProgramID, signer); err != nil {
		return err
	}

	ctx.Log("Initialize the associated token account")
	return ctx.Invoke(token.InitializeAccount3(ata.Key, mint.Key, wallet.Key))
}
