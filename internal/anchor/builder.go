package anchor

import (
	"errors"

	"escrow-lab/internal/solana"
)

var (
	// ErrMissingAccounts is returned by Instruction when no accounts were set.
	ErrMissingAccounts = errors.New("anchor: instruction accounts not set")

	// ErrMissingArgs is returned by Instruction when no args were set.
	ErrMissingArgs = errors.New("anchor: instruction args not set")
)

// Accounts is a typed account struct that knows its instruction order.
type Accounts interface {
	ToAccountMetas() []solana.AccountMeta
}

// Args is a typed argument struct that encodes its instruction data,
// discriminator included.
type Args interface {
	Data() ([]byte, error)
}

// Builder assembles an instruction from typed accounts and args.
type Builder struct {
	programID solana.PublicKey
	accounts  Accounts
	args      Args
}

// NewBuilder starts an instruction for programID.
func NewBuilder(programID solana.PublicKey) *Builder {
	return &Builder{programID: programID}
}

// Accounts sets the instruction accounts.
func (b *Builder) Accounts(a Accounts) *Builder {
	b.accounts = a
	return b
}

// Args sets the instruction arguments.
func (b *Builder) Args(a Args) *Builder {
	b.args = a
	return b
}

// Instruction builds the instruction.
func (b *Builder) Instruction() (solana.Instruction, error) {
	if b.accounts == nil {
		return solana.Instruction{}, ErrMissingAccounts
	}
	if b.args == nil {
		return solana.Instruction{}, ErrMissingArgs
	}
	data, err := b.args.Data()
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.Instruction{
		ProgramID: b.programID,
		Accounts:  b.accounts.ToAccountMetas(),
		Data:      data,
	}, nil
}
