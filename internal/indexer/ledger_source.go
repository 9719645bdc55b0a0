package indexer

import (
	"context"
	"fmt"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
)

// LedgerSource reads transactions from an in-process ledger.
type LedgerSource struct {
	ledger *svm.SVM
	filter solana.LogsFilter
}

// NewLedgerSource creates a source for transactions on ledger matching filter.
func NewLedgerSource(ledger *svm.SVM, filter solana.LogsFilter) *LedgerSource {
	return &LedgerSource{ledger: ledger, filter: filter}
}

// Subscribe registers a ledger subscription that closes with ctx.
func (s *LedgerSource) Subscribe(ctx context.Context) (<-chan solana.LogNotification, error) {
	sub := s.ledger.Subscribe(s.filter)
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub.Notifications(), nil
}

// Transaction looks the signature up in the ledger history.
func (s *LedgerSource) Transaction(_ context.Context, signature string) (*domain.TransactionRecord, error) {
	sig, err := solana.ParseSignature(signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	ptx, ok := s.ledger.GetTransaction(sig)
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return RecordFromProcessed(ptx), nil
}
