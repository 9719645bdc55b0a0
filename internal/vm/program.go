package vm

import "escrow-lab/internal/solana"

// Program is a native program the ledger can execute.
type Program interface {
	ID() solana.PublicKey
	Name() string
	Process(ctx Context, data []byte) error
}

// ComputeCoster reports the base compute cost of an instruction. Programs
// that do not implement it are charged DefaultComputeUnits.
type ComputeCoster interface {
	ComputeUnits(data []byte) uint64
}

// Builtin marks programs that log only invoke and result lines, like the
// runtime's own builtins.
type Builtin interface {
	Builtin() bool
}

// DefaultComputeUnits is charged per invocation when a program has no cost table.
const DefaultComputeUnits = 150

// Context is the view an executing program has of the runtime.
type Context interface {
	// ProgramID is the currently executing program.
	ProgramID() solana.PublicKey

	// Accounts are the instruction accounts in instruction order.
	Accounts() []*AccountInfo

	// Account returns the i-th instruction account or ErrNotEnoughAccountKeys.
	Account(i int) (*AccountInfo, error)

	// Log appends a "Program log:" line.
	Log(format string, args ...interface{})

	// LogData appends a "Program data:" line with base64 fields.
	LogData(data ...[]byte)

	// Invoke calls another program with the caller's privileges.
	Invoke(ix solana.Instruction) error

	// InvokeSigned is Invoke with program-derived signers.
	InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error

	// ConsumeUnits charges compute; ErrComputationalBudgetExceeded when exhausted.
	ConsumeUnits(n uint64) error

	// Rent returns the rent parameters.
	Rent() Rent

	// Clock returns the current slot and unix timestamp.
	Clock() Clock
}

// Clock is the runtime clock sysvar.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}
