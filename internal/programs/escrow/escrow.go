// Package escrow implements a two-party token swap program. A maker deposits
// mint A tokens into a vault owned by a program-derived escrow account and
// names the amount of mint B they want in return. A taker completes the swap
// in one transaction, or the maker refunds the deposit.
package escrow

import (
	"escrow-lab/internal/anchor"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// ProgramID is the address the escrow program is deployed at by default.
var ProgramID = solana.MustPublicKey("BzHmWns7farc1UMjxAzqjb684g43B9cv8ZHCXzwxJAxr")

// ProgramName is the name the program registers under.
const ProgramName = "anchor_escrow"

var (
	discMake   = anchor.InstructionDiscriminator("make")
	discTake   = anchor.InstructionDiscriminator("take")
	discRefund = anchor.InstructionDiscriminator("refund")
)

// Base compute cost per instruction, not counting invoked programs.
var computeUnits = map[anchor.Discriminator]uint64{
	discMake:   12_000,
	discTake:   16_000,
	discRefund: 10_000,
}

// Program is the escrow program. The zero value is not usable; build it with
// New or NewWithID.
type Program struct {
	id solana.PublicKey
}

var (
	_ vm.Program       = (*Program)(nil)
	_ vm.ComputeCoster = (*Program)(nil)
)

// New returns the program at ProgramID.
func New() *Program {
	return &Program{id: ProgramID}
}

// NewWithID returns the program deployed at id.
func NewWithID(id solana.PublicKey) *Program {
	return &Program{id: id}
}

func (p *Program) ID() solana.PublicKey { return p.id }
func (p *Program) Name() string         { return ProgramName }

func (p *Program) ComputeUnits(data []byte) uint64 {
	if len(data) >= anchor.DiscriminatorSize {
		var d anchor.Discriminator
		copy(d[:], data)
		if n, ok := computeUnits[d]; ok {
			return n
		}
	}
	return 1_000
}

// Process dispatches on the 8-byte instruction discriminator.
func (p *Program) Process(ctx vm.Context, data []byte) error {
	if len(data) < anchor.DiscriminatorSize {
		return anchor.Fail(ctx, anchor.ErrInstructionMissing)
	}
	var d anchor.Discriminator
	copy(d[:], data)
	body := data[anchor.DiscriminatorSize:]

	var err error
	switch d {
	case discMake:
		ctx.Log("Instruction: Make")
		err = processMake(ctx, body)
	case discTake:
		ctx.Log("Instruction: Take")
		err = processTake(ctx)
	case discRefund:
		ctx.Log("Instruction: Refund")
		err = processRefund(ctx)
	default:
		err = anchor.ErrInstructionFallbackNotFound
	}
	return anchor.Fail(ctx, err)
}
