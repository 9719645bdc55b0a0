package svm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math/bits"
	"strings"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

const (
	// MaxInvokeStackHeight bounds nested invocations; the top-level
	// instruction counts as height 1.
	MaxInvokeStackHeight = 5

	// InvokeComputeUnits is charged to the caller of every cross-program invocation.
	InvokeComputeUnits = 1000

	// PDADerivationComputeUnits is charged per signer seed set.
	PDADerivationComputeUnits = 1500

	logBytesLimit = 10_000
)

type logCollector struct {
	lines     []string
	bytes     int
	truncated bool
}

func (l *logCollector) add(line string) {
	if l.truncated {
		return
	}
	if l.bytes+len(line) > logBytesLimit {
		l.lines = append(l.lines, "Log truncated")
		l.truncated = true
		return
	}
	l.bytes += len(line)
	l.lines = append(l.lines, line)
}

// transactionContext holds the state shared by every invocation of one
// transaction.
type transactionContext struct {
	programs  map[solana.PublicKey]vm.Program
	accounts  map[solana.PublicKey]*vm.Account
	rent      vm.Rent
	clock     vm.Clock
	budget    uint64
	remaining uint64
	stack     []solana.PublicKey
	logs      logCollector
}

func newTransactionContext(s *SVM, accounts map[solana.PublicKey]*vm.Account, budget uint64) *transactionContext {
	return &transactionContext{
		programs:  s.programs,
		accounts:  accounts,
		rent:      s.rent,
		clock:     vm.Clock{Slot: s.slot, UnixTimestamp: s.now().Unix()},
		budget:    budget,
		remaining: budget,
	}
}

func (tc *transactionContext) log(format string, args ...interface{}) {
	tc.logs.add(fmt.Sprintf(format, args...))
}

func (tc *transactionContext) consume(n uint64) error {
	if n > tc.remaining {
		tc.remaining = 0
		return vm.ErrComputationalBudgetExceeded
	}
	tc.remaining -= n
	return nil
}

func (tc *transactionContext) consumed() uint64 {
	return tc.budget - tc.remaining
}

func baseCost(p vm.Program, data []byte) uint64 {
	if c, ok := p.(vm.ComputeCoster); ok {
		return c.ComputeUnits(data)
	}
	return vm.DefaultComputeUnits
}

func isBuiltin(p vm.Program) bool {
	b, ok := p.(vm.Builtin)
	return ok && b.Builtin()
}

// invoke runs program with the given account privileges and verifies the
// account changes it made.
func (tc *transactionContext) invoke(program vm.Program, metas []solana.AccountMeta, data []byte) error {
	id := program.ID()
	height := len(tc.stack) + 1
	if height > MaxInvokeStackHeight {
		return vm.ErrCallDepth
	}
	if n := len(tc.stack); n > 0 && tc.stack[n-1] != id {
		for _, caller := range tc.stack {
			if caller == id {
				return vm.ErrReentrancyNotAllowed
			}
		}
	}

	f := newFrame(tc, program, metas)
	tc.stack = append(tc.stack, id)
	defer func() { tc.stack = tc.stack[:len(tc.stack)-1] }()

	tc.log("Program %s invoke [%d]", id, height)
	start := tc.remaining

	err := tc.consume(baseCost(program, data))
	if err == nil {
		err = f.process(data)
	}
	if f.abortErr != nil {
		err = f.abortErr
	}
	if err == nil {
		err = f.verify()
	}

	if !isBuiltin(program) {
		tc.log("Program %s consumed %d of %d compute units", id, start-tc.remaining, start)
	}
	if err != nil {
		tc.log("Program %s failed: %v", id, err)
		return err
	}
	tc.log("Program %s success", id)
	return nil
}

// frame is one program invocation. It implements vm.Context.
type frame struct {
	tc       *transactionContext
	program  vm.Program
	infos    []*vm.AccountInfo
	byKey    map[solana.PublicKey]*vm.AccountInfo
	signers  map[solana.PublicKey]bool
	writable map[solana.PublicKey]bool
	pre      map[solana.PublicKey]*vm.Account

	// abortErr is the first failed cross-program invocation. It fails the
	// frame even if the program swallowed the error.
	abortErr error
}

var _ vm.Context = (*frame)(nil)

func newFrame(tc *transactionContext, program vm.Program, metas []solana.AccountMeta) *frame {
	f := &frame{
		tc:       tc,
		program:  program,
		infos:    make([]*vm.AccountInfo, 0, len(metas)),
		byKey:    make(map[solana.PublicKey]*vm.AccountInfo, len(metas)),
		signers:  make(map[solana.PublicKey]bool),
		writable: make(map[solana.PublicKey]bool),
	}
	for _, m := range metas {
		info := &vm.AccountInfo{
			Key:        m.PublicKey,
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
			Account:    tc.accounts[m.PublicKey],
		}
		f.infos = append(f.infos, info)
		if _, ok := f.byKey[m.PublicKey]; !ok {
			f.byKey[m.PublicKey] = info
		}
		if m.IsSigner {
			f.signers[m.PublicKey] = true
		}
		if m.IsWritable {
			f.writable[m.PublicKey] = true
		}
	}
	f.snapshot()
	return f
}

func (f *frame) snapshot() {
	f.pre = make(map[solana.PublicKey]*vm.Account, len(f.byKey))
	for key, info := range f.byKey {
		f.pre[key] = info.Account.Clone()
	}
}

func (f *frame) process(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f.Log("panicked: %v", r)
			err = vm.ErrProgramFailedToComplete
		}
	}()
	return f.program.Process(f, data)
}

// verify checks the changes made since the last snapshot against the
// runtime's ownership and privilege rules.
func (f *frame) verify() error {
	programID := f.program.ID()
	var preHi, preLo, postHi, postLo uint64
	var carry uint64

	for key, pre := range f.pre {
		post := f.byKey[key].Account
		writable := f.writable[key]

		if pre.Executable {
			if !pre.Equal(post) {
				return vm.ErrExecutableModified
			}
		} else if post.Executable {
			return vm.ErrExecutableModified
		}

		if pre.Owner != post.Owner {
			if !writable || pre.Owner != programID || !post.DataIsZeroed() {
				return vm.ErrModifiedProgramID
			}
		}

		if !bytes.Equal(pre.Data, post.Data) {
			if !writable {
				return vm.ErrReadonlyDataModified
			}
			if pre.Owner != programID {
				return vm.ErrExternalAccountDataModified
			}
		}
		if len(post.Data) > vm.MaxPermittedDataLength {
			return vm.ErrInvalidRealloc
		}

		if pre.Lamports != post.Lamports {
			if !writable {
				return vm.ErrReadonlyLamportChange
			}
			if post.Lamports < pre.Lamports && pre.Owner != programID {
				return vm.ErrExternalLamportSpend
			}
		}

		preLo, carry = bits.Add64(preLo, pre.Lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, post.Lamports, 0)
		postHi += carry
	}

	if preHi != postHi || preLo != postLo {
		return vm.ErrUnbalancedInstruction
	}
	return nil
}

func (f *frame) ProgramID() solana.PublicKey { return f.program.ID() }

func (f *frame) Accounts() []*vm.AccountInfo { return f.infos }

func (f *frame) Account(i int) (*vm.AccountInfo, error) {
	if i < 0 || i >= len(f.infos) {
		return nil, vm.ErrNotEnoughAccountKeys
	}
	return f.infos[i], nil
}

func (f *frame) Log(format string, args ...interface{}) {
	f.tc.log("Program log: %s", fmt.Sprintf(format, args...))
}

func (f *frame) LogData(data ...[]byte) {
	fields := make([]string, len(data))
	for i, d := range data {
		fields[i] = base64.StdEncoding.EncodeToString(d)
	}
	f.tc.log("Program data: %s", strings.Join(fields, " "))
}

func (f *frame) ConsumeUnits(n uint64) error { return f.tc.consume(n) }

func (f *frame) Rent() vm.Rent { return f.tc.rent }

func (f *frame) Clock() vm.Clock { return f.tc.clock }

func (f *frame) Invoke(ix solana.Instruction) error {
	return f.InvokeSigned(ix)
}

func (f *frame) InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error {
	err := f.invokeSigned(ix, signerSeeds)
	if err != nil && f.abortErr == nil {
		f.abortErr = err
	}
	return err
}

func (f *frame) invokeSigned(ix solana.Instruction, signerSeeds [][][]byte) error {
	if err := f.tc.consume(InvokeComputeUnits); err != nil {
		return err
	}

	pdaSigners := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		if err := f.tc.consume(PDADerivationComputeUnits); err != nil {
			return err
		}
		addr, err := solana.CreateProgramAddress(seeds, f.program.ID())
		if err != nil {
			return vm.ErrInvalidSeeds
		}
		pdaSigners[addr] = true
	}

	if _, ok := f.byKey[ix.ProgramID]; !ok {
		f.tc.log("Unknown program %s", ix.ProgramID)
		return vm.ErrMissingAccount
	}
	callee, ok := f.tc.programs[ix.ProgramID]
	if !ok {
		return vm.ErrUnsupportedProgram
	}

	for _, m := range ix.Accounts {
		if _, ok := f.byKey[m.PublicKey]; !ok {
			f.tc.log("Instruction references an unknown account %s", m.PublicKey)
			return vm.ErrMissingAccount
		}
		if m.IsWritable && !f.writable[m.PublicKey] {
			f.tc.log("%s's writable privilege escalated", m.PublicKey)
			return vm.ErrPrivilegeEscalation
		}
		if m.IsSigner && !f.signers[m.PublicKey] && !pdaSigners[m.PublicKey] {
			f.tc.log("%s's signer privilege escalated", m.PublicKey)
			return vm.ErrPrivilegeEscalation
		}
	}

	if err := f.verify(); err != nil {
		return err
	}
	if err := f.tc.invoke(callee, ix.Accounts, ix.Data); err != nil {
		return err
	}
	f.snapshot()
	return nil
}
