package memory

import (
	"context"
	"sort"
	"sync"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionRecord // keyed by signature
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.TransactionRecord),
	}
}

// cloneRecord copies r including its slices.
func cloneRecord(r *domain.TransactionRecord) *domain.TransactionRecord {
	c := *r
	c.Accounts = append([]string(nil), r.Accounts...)
	c.Logs = append([]string(nil), r.Logs...)
	if r.Err != nil {
		e := *r.Err
		c.Err = &e
	}
	return &c
}

// Insert adds a new transaction. Returns a DuplicateError if the signature is stored.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.TransactionRecord) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.Signature]; exists {
		return storage.DuplicateSignature(tx.Signature)
	}

	s.data[tx.Signature] = cloneRecord(tx)
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.TransactionRecord) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if tx == nil || tx.Signature == "" {
			return storage.ErrInvalidInput
		}
		_, stored := s.data[tx.Signature]
		_, repeated := batchKeys[tx.Signature]
		if stored || repeated {
			return storage.DuplicateSignature(tx.Signature)
		}
		batchKeys[tx.Signature] = struct{}{}
	}

	for _, tx := range txs {
		s.data[tx.Signature] = cloneRecord(tx)
	}

	return nil
}

// GetBySignature retrieves a transaction by signature.
func (s *TransactionStore) GetBySignature(_ context.Context, signature string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(tx), nil
}

// GetBySlotRange retrieves transactions within slots [from, to] (inclusive).
func (s *TransactionStore) GetBySlotRange(_ context.Context, from, to int64) ([]*domain.TransactionRecord, error) {
	return s.filter(func(tx *domain.TransactionRecord) bool {
		return tx.Slot >= from && tx.Slot <= to
	}), nil
}

// GetByAccount retrieves transactions mentioning account.
func (s *TransactionStore) GetByAccount(_ context.Context, account string) ([]*domain.TransactionRecord, error) {
	return s.filter(func(tx *domain.TransactionRecord) bool {
		return tx.Mentions(account)
	}), nil
}

func (s *TransactionStore) filter(keep func(*domain.TransactionRecord) bool) []*domain.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, tx := range s.data {
		if keep(tx) {
			result = append(result, cloneRecord(tx))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].Signature < result[j].Signature
	})

	return result
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
