// Package harness wraps the ledger simulator with the setup and assertion
// helpers program tests need: funded keypairs, mints, token accounts and
// one-call instruction execution.
package harness

import (
	"fmt"

	"go.uber.org/zap"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
	"escrow-lab/internal/vm"
)

// DefaultPayerLamports funds the payer every Context starts with.
const DefaultPayerLamports = 100 * 1_000_000_000

// Context is a ledger with a funded payer and the program under test.
type Context struct {
	SVM       *svm.SVM
	Payer     *solana.Keypair
	ProgramID solana.PublicKey
}

// Builder configures a Context.
type Builder struct {
	programs []vm.Program
	opts     []svm.Option
	lamports uint64
}

// New starts a Context builder.
func New() *Builder {
	return &Builder{lamports: DefaultPayerLamports}
}

// Program deploys p. The first program becomes Context.ProgramID.
func (b *Builder) Program(p vm.Program) *Builder {
	b.programs = append(b.programs, p)
	return b
}

// ComputeBudget sets the per-instruction compute limit.
func (b *Builder) ComputeBudget(units uint64) *Builder {
	b.opts = append(b.opts, svm.WithComputeBudget(units))
	return b
}

// Logger routes ledger logs to logger.
func (b *Builder) Logger(logger *zap.Logger) *Builder {
	b.opts = append(b.opts, svm.WithLogger(logger))
	return b
}

// SigVerify toggles signature verification.
func (b *Builder) SigVerify(enabled bool) *Builder {
	b.opts = append(b.opts, svm.WithSigVerify(enabled))
	return b
}

// PayerLamports sets the payer's starting balance.
func (b *Builder) PayerLamports(lamports uint64) *Builder {
	b.lamports = lamports
	return b
}

// Build creates the ledger and funds the payer.
func (b *Builder) Build() (*Context, error) {
	opts := append([]svm.Option(nil), b.opts...)
	for _, p := range b.programs {
		opts = append(opts, svm.WithProgram(p))
	}
	ctx := &Context{
		SVM:   svm.New(opts...),
		Payer: solana.NewKeypair(),
	}
	if len(b.programs) > 0 {
		ctx.ProgramID = b.programs[0].ID()
	}
	if b.lamports > 0 {
		if _, err := ctx.SVM.Airdrop(ctx.Payer.PublicKey(), b.lamports); err != nil {
			return nil, fmt.Errorf("fund payer: %w", err)
		}
	}
	return ctx, nil
}

// BuildWithProgram is New().Program(p).Build().
func BuildWithProgram(p vm.Program) (*Context, error) {
	return New().Program(p).Build()
}

// ExecuteInstruction sends ix in its own transaction. The first signer pays
// the fee; with no signers the Context payer does. Transaction failures are
// reported in the result, not as the error.
func (c *Context) ExecuteInstruction(ix solana.Instruction, signers ...*solana.Keypair) (*ExecutionResult, error) {
	return c.ExecuteInstructions([]solana.Instruction{ix}, signers...)
}

// ExecuteInstructions sends ixs atomically in one transaction.
func (c *Context) ExecuteInstructions(ixs []solana.Instruction, signers ...*solana.Keypair) (*ExecutionResult, error) {
	payer := c.Payer
	if len(signers) > 0 {
		payer = signers[0]
		signers = signers[1:]
	}
	tx, err := signUnique(c.SVM, ixs, payer, signers)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	meta, err := c.SVM.SendTransaction(tx)
	return &ExecutionResult{Meta: meta, Err: err}, nil
}

// AccountExists reports whether pk holds lamports.
func (c *Context) AccountExists(pk solana.PublicKey) bool {
	acct, ok := c.SVM.GetAccount(pk)
	return ok && acct.Lamports > 0
}

// Balance returns the lamports held by pk.
func (c *Context) Balance(pk solana.PublicKey) uint64 {
	return c.SVM.Balance(pk)
}
