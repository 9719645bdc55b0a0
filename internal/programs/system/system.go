// Package system implements the system program: account creation, lamport
// transfers, allocation and owner assignment.
package system

import (
	"encoding/binary"
	"fmt"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// Instruction tags.
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// Custom error codes.
const (
	ErrAccountAlreadyInUse        = vm.CustomError(0)
	ErrResultWithNegativeLamports = vm.CustomError(1)
	ErrInvalidAccountDataLength   = vm.CustomError(3)
)

// MaxPermittedDataLength is the largest space Allocate accepts.
const MaxPermittedDataLength = vm.MaxPermittedDataLength

// Program is the system program.
type Program struct{}

var (
	_ vm.Program = Program{}
	_ vm.Builtin = Program{}
)

func (Program) ID() solana.PublicKey { return solana.SystemProgramID }
func (Program) Name() string         { return "system_program" }
func (Program) Builtin() bool        { return true }

// Process dispatches on the u32 little-endian instruction tag.
func (Program) Process(ctx vm.Context, data []byte) error {
	if len(data) < 4 {
		return vm.ErrInvalidInstructionData
	}
	body := data[4:]
	switch binary.LittleEndian.Uint32(data) {
	case InstructionCreateAccount:
		if len(body) != 8+8+32 {
			return vm.ErrInvalidInstructionData
		}
		owner, _ := solana.PublicKeyFromBytes(body[16:48])
		return createAccount(ctx,
			binary.LittleEndian.Uint64(body[0:8]),
			binary.LittleEndian.Uint64(body[8:16]),
			owner)
	case InstructionAssign:
		if len(body) != 32 {
			return vm.ErrInvalidInstructionData
		}
		owner, _ := solana.PublicKeyFromBytes(body)
		return assignIx(ctx, owner)
	case InstructionTransfer:
		if len(body) != 8 {
			return vm.ErrInvalidInstructionData
		}
		return transfer(ctx, binary.LittleEndian.Uint64(body))
	case InstructionAllocate:
		if len(body) != 8 {
			return vm.ErrInvalidInstructionData
		}
		return allocateIx(ctx, binary.LittleEndian.Uint64(body))
	default:
		return vm.ErrInvalidInstructionData
	}
}

func createAccount(ctx vm.Context, lamports, space uint64, owner solana.PublicKey) error {
	from, err := ctx.Account(0)
	if err != nil {
		return err
	}
	to, err := ctx.Account(1)
	if err != nil {
		return err
	}
	if to.Lamports > 0 {
		ctx.Log("Create Account: account Address { address: %s, base: None } already in use", to.Key)
		return ErrAccountAlreadyInUse
	}
	if err := allocate(ctx, to, space); err != nil {
		return err
	}
	if err := assign(ctx, to, owner); err != nil {
		return err
	}
	return transferLamports(ctx, from, to, lamports)
}

func assignIx(ctx vm.Context, owner solana.PublicKey) error {
	acct, err := ctx.Account(0)
	if err != nil {
		return err
	}
	return assign(ctx, acct, owner)
}

func allocateIx(ctx vm.Context, space uint64) error {
	acct, err := ctx.Account(0)
	if err != nil {
		return err
	}
	return allocate(ctx, acct, space)
}

func transfer(ctx vm.Context, lamports uint64) error {
	from, err := ctx.Account(0)
	if err != nil {
		return err
	}
	to, err := ctx.Account(1)
	if err != nil {
		return err
	}
	return transferLamports(ctx, from, to, lamports)
}

func allocate(ctx vm.Context, acct *vm.AccountInfo, space uint64) error {
	if !acct.IsSigner {
		ctx.Log("Allocate: 'to' account %s must sign", acct.Key)
		return vm.ErrMissingRequiredSignature
	}
	if len(acct.Data) > 0 || !acct.IsOwnedBy(solana.SystemProgramID) {
		ctx.Log("Allocate: account Address { address: %s, base: None } already in use", acct.Key)
		return ErrAccountAlreadyInUse
	}
	if space > MaxPermittedDataLength {
		ctx.Log("Allocate: requested %d, max allowed %d", space, MaxPermittedDataLength)
		return ErrInvalidAccountDataLength
	}
	acct.Data = make([]byte, space)
	return nil
}

func assign(ctx vm.Context, acct *vm.AccountInfo, owner solana.PublicKey) error {
	if acct.Owner == owner {
		return nil
	}
	if !acct.IsSigner {
		ctx.Log("Assign: account %s must sign", acct.Key)
		return vm.ErrMissingRequiredSignature
	}
	acct.Owner = owner
	return nil
}

func transferLamports(ctx vm.Context, from, to *vm.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ctx.Log("Transfer: `from` account %s must sign", from.Key)
		return vm.ErrMissingRequiredSignature
	}
	if len(from.Data) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return vm.ErrInvalidArgument
	}
	if from.Lamports < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrResultWithNegativeLamports
	}
	if err := vm.MoveLamports(from, to, lamports); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}
