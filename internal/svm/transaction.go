package svm

import (
	"errors"

	"go.uber.org/zap"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// TransactionMetadata describes an executed transaction.
type TransactionMetadata struct {
	Signature            solana.Signature
	Slot                 uint64
	BlockTime            int64
	Logs                 []string
	ComputeUnitsConsumed uint64
	Fee                  uint64
	AccountKeys          []solana.PublicKey
	PreBalances          []uint64
	PostBalances         []uint64
}

// SendTransaction executes and commits tx. On failure the error is a
// *FailedTransactionError; if execution started, the fee stays charged and
// every other change is discarded.
func (s *SVM) SendTransaction(tx *solana.Transaction) (TransactionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process(tx, true)
}

// SimulateTransaction executes tx without committing it. Signatures are not
// verified and the replay check is skipped.
func (s *SVM) SimulateTransaction(tx *solana.Transaction) (TransactionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process(tx, false)
}

func (s *SVM) process(tx *solana.Transaction, commit bool) (TransactionMetadata, error) {
	msg := &tx.Message
	meta := TransactionMetadata{
		Signature:   tx.Signature(),
		Slot:        s.slot,
		BlockTime:   s.now().Unix(),
		AccountKeys: append([]solana.PublicKey(nil), msg.AccountKeys...),
	}
	fail := func(err error) (TransactionMetadata, error) {
		return meta, &FailedTransactionError{Err: err, Meta: meta}
	}

	if err := msg.Sanitize(); err != nil {
		return fail(ErrSanitizeFailure)
	}
	if len(tx.Signatures) != int(msg.Header.NumRequiredSignatures) {
		return fail(ErrSanitizeFailure)
	}
	if commit && s.sigVerify {
		if err := tx.Verify(); err != nil {
			if errors.Is(err, solana.ErrMissingSignature) {
				return fail(ErrMissingSignature)
			}
			return fail(ErrSignatureFailure)
		}
	}
	if _, ok := s.recentSet[msg.RecentBlockhash]; !ok {
		return fail(ErrBlockhashNotFound)
	}
	if commit {
		if _, seen := s.history[meta.Signature]; seen {
			return fail(ErrAlreadyProcessed)
		}
	}

	fee := s.feePerSignature * uint64(msg.Header.NumRequiredSignatures)
	payerKey := msg.FeePayer()
	payer, ok := s.accounts[payerKey]
	if !ok || payer.Lamports == 0 {
		return fail(ErrAccountNotFound)
	}
	if payer.Owner != solana.SystemProgramID {
		return fail(ErrInvalidAccountForFee)
	}
	if payer.Lamports < fee {
		return fail(ErrInsufficientFundsForFee)
	}
	charged := payer.Clone()
	charged.Lamports -= fee
	if !rentTransitionAllowed(s.rent, payer, charged) {
		return fail(&RentError{AccountIndex: 0})
	}

	// Execution works on clones so a failure leaves the store untouched.
	working := make(map[solana.PublicKey]*vm.Account, len(msg.AccountKeys))
	meta.PreBalances = make([]uint64, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		if acct, ok := s.accounts[key]; ok {
			working[key] = acct.Clone()
			meta.PreBalances[i] = acct.Lamports
		} else {
			working[key] = &vm.Account{Owner: solana.SystemProgramID}
		}
	}
	working[payerKey].Lamports -= fee
	meta.Fee = fee

	tc := newTransactionContext(s, working, s.transactionBudget(len(msg.Instructions)))
	execErr := s.execute(tc, msg)
	if execErr == nil {
		execErr = s.checkRent(msg, working)
	}
	meta.Logs = tc.logs.lines
	meta.ComputeUnitsConsumed = tc.consumed()

	meta.PostBalances = make([]uint64, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		if execErr == nil {
			meta.PostBalances[i] = working[key].Lamports
		} else {
			meta.PostBalances[i] = meta.PreBalances[i]
		}
	}
	if execErr != nil {
		meta.PostBalances[0] = meta.PreBalances[0] - fee
	}

	if commit {
		s.commit(tx, msg, working, charged, meta, execErr)
	}

	if execErr != nil {
		return meta, &FailedTransactionError{Err: execErr, Meta: meta, Executed: true}
	}
	return meta, nil
}

func (s *SVM) transactionBudget(instructions int) uint64 {
	budget := s.computeLimit * uint64(instructions)
	if budget > MaxComputeUnitLimit || instructions == 0 {
		budget = MaxComputeUnitLimit
	}
	return budget
}

func (s *SVM) execute(tc *transactionContext, msg *solana.Message) error {
	for i := range msg.Instructions {
		ix := msg.Instruction(i)
		program, ok := s.programs[ix.ProgramID]
		if !ok {
			return &InstructionError{Index: i, Err: vm.ErrUnsupportedProgram}
		}
		if err := tc.invoke(program, ix.Accounts, ix.Data); err != nil {
			return &InstructionError{Index: i, Err: err}
		}
	}
	return nil
}

// checkRent rejects transactions that leave a writable account rent-paying
// unless it already was, with unchanged size.
func (s *SVM) checkRent(msg *solana.Message, working map[solana.PublicKey]*vm.Account) error {
	for i, key := range msg.AccountKeys {
		if !msg.IsWritable(i) {
			continue
		}
		if !rentTransitionAllowed(s.rent, s.accounts[key], working[key]) {
			return &RentError{AccountIndex: i}
		}
	}
	return nil
}

func rentTransitionAllowed(rent vm.Rent, pre, post *vm.Account) bool {
	if rent.State(post) != vm.RentPaying {
		return true
	}
	return pre != nil && rent.State(pre) == vm.RentPaying && len(pre.Data) == len(post.Data)
}

func (s *SVM) commit(tx *solana.Transaction, msg *solana.Message, working map[solana.PublicKey]*vm.Account, charged *vm.Account, meta TransactionMetadata, execErr error) {
	if execErr == nil {
		for i, key := range msg.AccountKeys {
			if !msg.IsWritable(i) {
				continue
			}
			if acct := working[key]; acct.Lamports == 0 {
				delete(s.accounts, key)
			} else {
				s.accounts[key] = acct
			}
		}
	} else if charged.Lamports == 0 {
		delete(s.accounts, msg.FeePayer())
	} else {
		s.accounts[msg.FeePayer()] = charged
	}

	s.record(tx, meta, execErr)
	observability.RecordTransaction(execErr == nil, meta.ComputeUnitsConsumed, meta.Fee, errorKind(execErr))

	if execErr != nil {
		s.logger.Debug("transaction failed",
			zap.Stringer("signature", meta.Signature),
			zap.Uint64("slot", meta.Slot),
			zap.Uint64("compute_units", meta.ComputeUnitsConsumed),
			zap.Error(execErr),
		)
		return
	}
	s.logger.Debug("transaction processed",
		zap.Stringer("signature", meta.Signature),
		zap.Uint64("slot", meta.Slot),
		zap.Uint64("compute_units", meta.ComputeUnitsConsumed),
		zap.Uint64("fee", meta.Fee),
	)
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	var ie *InstructionError
	if errors.As(err, &ie) {
		if _, ok := vm.CustomCode(ie.Err); ok {
			return "Custom"
		}
		err = ie.Err
	}
	var ve *vm.Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	var re *RentError
	if errors.As(err, &re) {
		return "InsufficientFundsForRent"
	}
	return "Unknown"
}
