// Package svm is an in-process ledger that executes native programs against
// an account store with Solana runtime semantics.
package svm

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/programs/ata"
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

const (
	// DefaultComputeUnitLimit is the per-instruction compute budget.
	DefaultComputeUnitLimit = 200_000

	// MaxComputeUnitLimit caps the budget of a whole transaction.
	MaxComputeUnitLimit = 1_400_000

	// DefaultLamportsPerSignature is the base fee per required signature.
	DefaultLamportsPerSignature = 5000

	// MaxRecentBlockhashes is how many blockhashes stay valid.
	MaxRecentBlockhashes = 150

	// faucetLamports seeds the airdrop faucet.
	faucetLamports = 1_000_000_000_000_000_000
)

// SVM is the ledger. All methods are safe for concurrent use; transactions
// execute one at a time.
type SVM struct {
	mu sync.Mutex

	logger   *zap.Logger
	accounts map[solana.PublicKey]*vm.Account
	programs map[solana.PublicKey]vm.Program
	rent     vm.Rent

	slot      uint64
	blockhash solana.Hash
	recent    []solana.Hash
	recentSet map[solana.Hash]struct{}

	history   map[solana.Signature]*ProcessedTransaction
	byAddress map[solana.PublicKey][]solana.Signature

	feePerSignature uint64
	computeLimit    uint64
	sigVerify       bool
	now             func() time.Time

	faucet *solana.Keypair
	subs   *subscriptions
}

// Option configures an SVM.
type Option func(*SVM)

// WithProgram registers an additional program.
func WithProgram(p vm.Program) Option {
	return func(s *SVM) { s.addProgram(p) }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SVM) { s.logger = logger }
}

// WithComputeBudget sets the per-instruction compute unit limit.
func WithComputeBudget(units uint64) Option {
	return func(s *SVM) { s.computeLimit = units }
}

// WithFeePerSignature sets the lamports charged per signature.
func WithFeePerSignature(lamports uint64) Option {
	return func(s *SVM) { s.feePerSignature = lamports }
}

// WithSigVerify toggles signature verification.
func WithSigVerify(enabled bool) Option {
	return func(s *SVM) { s.sigVerify = enabled }
}

// WithClock sets the wall clock used for block times.
func WithClock(now func() time.Time) Option {
	return func(s *SVM) { s.now = now }
}

// WithSubscriptionQueue sets how many undelivered notifications a
// subscription may hold before it is closed.
func WithSubscriptionQueue(n int) Option {
	return func(s *SVM) {
		if n > 0 {
			s.subs.limit = n
		}
	}
}

// New creates a ledger with the system, token and associated token account
// programs registered.
func New(opts ...Option) *SVM {
	s := &SVM{
		logger:          zap.NewNop(),
		accounts:        make(map[solana.PublicKey]*vm.Account),
		programs:        make(map[solana.PublicKey]vm.Program),
		rent:            vm.DefaultRent,
		recentSet:       make(map[solana.Hash]struct{}),
		history:         make(map[solana.Signature]*ProcessedTransaction),
		byAddress:       make(map[solana.PublicKey][]solana.Signature),
		feePerSignature: DefaultLamportsPerSignature,
		computeLimit:    DefaultComputeUnitLimit,
		sigVerify:       true,
		now:             time.Now,
		faucet:          solana.NewKeypair(),
		subs:            newSubscriptions(),
	}

	s.addProgram(system.Program{})
	s.addProgram(token.Program{})
	s.addProgram(ata.Program{})

	for _, opt := range opts {
		opt(s)
	}
	s.subs.logger = s.logger

	s.accounts[s.faucet.PublicKey()] = &vm.Account{
		Lamports: faucetLamports,
		Owner:    solana.SystemProgramID,
	}
	s.pushBlockhash(solana.HashOf([]byte("genesis"), s.faucet.PublicKey().Bytes()))
	return s
}

// AddProgram registers a program and stores its executable account.
func (s *SVM) AddProgram(p vm.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addProgram(p)
}

func (s *SVM) addProgram(p vm.Program) {
	data := []byte(p.Name())
	s.programs[p.ID()] = p
	s.accounts[p.ID()] = &vm.Account{
		Lamports:   s.rent.MinimumBalance(len(data)),
		Data:       data,
		Owner:      solana.NativeLoaderID,
		Executable: true,
	}
}

// Program returns the registered program at id.
func (s *SVM) Program(id solana.PublicKey) (vm.Program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[id]
	return p, ok
}

// GetAccount returns a copy of the account at pk.
func (s *SVM) GetAccount(pk solana.PublicKey) (*vm.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[pk]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// SetAccount overwrites the account at pk. A nil account removes it.
func (s *SVM) SetAccount(pk solana.PublicKey, acct *vm.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct == nil {
		delete(s.accounts, pk)
		return
	}
	s.accounts[pk] = acct.Clone()
}

// Balance returns the lamports at pk, zero if absent.
func (s *SVM) Balance(pk solana.PublicKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[pk]; ok {
		return acct.Lamports
	}
	return 0
}

// MinimumBalanceForRentExemption returns the rent-exempt minimum for dataLen bytes.
func (s *SVM) MinimumBalanceForRentExemption(dataLen int) uint64 {
	return s.rent.MinimumBalance(dataLen)
}

// Rent returns the rent parameters.
func (s *SVM) Rent() vm.Rent {
	return s.rent
}

// LatestBlockhash returns the current blockhash.
func (s *SVM) LatestBlockhash() solana.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockhash
}

// Slot returns the current slot.
func (s *SVM) Slot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// ExpireBlockhash advances the slot and produces a new blockhash.
func (s *SVM) ExpireBlockhash() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireBlockhash()
}

// WarpToSlot moves the clock to slot. Slots never move backwards.
func (s *SVM) WarpToSlot(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.slot < slot {
		s.expireBlockhash()
	}
}

func (s *SVM) expireBlockhash() {
	s.slot++
	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], s.slot)
	s.pushBlockhash(solana.HashOf(s.blockhash[:], slot[:]))
	observability.SetSlot(s.slot)
}

func (s *SVM) pushBlockhash(h solana.Hash) {
	s.blockhash = h
	s.recent = append(s.recent, h)
	s.recentSet[h] = struct{}{}
	if len(s.recent) > MaxRecentBlockhashes {
		delete(s.recentSet, s.recent[0])
		s.recent = s.recent[1:]
	}
}

// Airdrop credits lamports to the recipient with a system transfer signed by
// the faucet and returns its signature.
func (s *SVM) Airdrop(to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix := system.Transfer(s.faucet.PublicKey(), to, lamports)
	for attempt := 0; ; attempt++ {
		tx, err := solana.NewSignedTransaction([]solana.Instruction{ix}, s.faucet, nil, s.blockhash)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("build airdrop: %w", err)
		}
		// Equal airdrops within one blockhash share a signature.
		if _, seen := s.history[tx.Signature()]; seen && attempt == 0 {
			s.expireBlockhash()
			continue
		}
		meta, err := s.process(tx, true)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("airdrop %d lamports to %s: %w", lamports, to, err)
		}
		observability.RecordAirdrop(lamports)
		return meta.Signature, nil
	}
}
