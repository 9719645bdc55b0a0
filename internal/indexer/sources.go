package indexer

import (
	"context"
	"errors"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/solana"
)

// ErrTransactionNotFound is returned by a Source that does not know a
// notified signature.
var ErrTransactionNotFound = errors.New("transaction not found")

// Source provides processed transactions from a ledger.
type Source interface {
	// Subscribe streams log notifications until ctx is cancelled.
	// Notifications arrive in processing order but may repeat after reconnects.
	Subscribe(ctx context.Context) (<-chan solana.LogNotification, error)

	// Transaction returns the full record for a notified signature.
	Transaction(ctx context.Context, signature string) (*domain.TransactionRecord, error)
}
