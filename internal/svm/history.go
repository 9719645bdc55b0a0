package svm

import "escrow-lab/internal/solana"

// ProcessedTransaction is a transaction that was charged a fee, with its
// outcome.
type ProcessedTransaction struct {
	Transaction *solana.Transaction
	Meta        TransactionMetadata
	Err         error
}

func (s *SVM) record(tx *solana.Transaction, meta TransactionMetadata, execErr error) {
	sig := meta.Signature
	s.history[sig] = &ProcessedTransaction{
		Transaction: tx,
		Meta:        meta,
		Err:         execErr,
	}
	for _, key := range meta.AccountKeys {
		s.byAddress[key] = append(s.byAddress[key], sig)
	}

	keys := make([]string, len(meta.AccountKeys))
	for i, k := range meta.AccountKeys {
		keys[i] = k.String()
	}
	s.subs.publish(keys, solana.LogNotification{
		Signature: sig.String(),
		Slot:      meta.Slot,
		Logs:      meta.Logs,
		Err:       ErrorJSON(execErr),
	})
}

// GetTransaction returns a processed transaction by signature.
func (s *SVM) GetTransaction(sig solana.Signature) (*ProcessedTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptx, ok := s.history[sig]
	return ptx, ok
}

// HistoryQuery pages through an address history. Zero signatures are unset.
type HistoryQuery struct {
	Before solana.Signature // start after this signature
	Until  solana.Signature // stop before reaching this signature
	Limit  int              // <= 0 means no limit
}

// SignaturesForAddress returns processed transactions mentioning addr, newest
// first, within q.
func (s *SVM) SignaturesForAddress(addr solana.PublicKey, q HistoryQuery) []*ProcessedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	sigs := s.byAddress[addr]
	var out []*ProcessedTransaction
	started := q.Before.IsZero()
	for i := len(sigs) - 1; i >= 0; i-- {
		if !started {
			started = sigs[i] == q.Before
			continue
		}
		if !q.Until.IsZero() && sigs[i] == q.Until {
			break
		}
		out = append(out, s.history[sigs[i]])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// TransactionCount returns the number of processed transactions.
func (s *SVM) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
