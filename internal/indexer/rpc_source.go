package indexer

import (
	"context"
	"fmt"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/solana"
)

// RPCSource reads transactions from a remote ledger: notifications over
// WebSocket, full transactions over JSON-RPC.
type RPCSource struct {
	ws     solana.WSClient
	rpc    solana.RPCClient
	filter solana.LogsFilter
}

// NewRPCSource creates a source backed by a WebSocket and an RPC client.
func NewRPCSource(ws solana.WSClient, rpc solana.RPCClient, filter solana.LogsFilter) *RPCSource {
	return &RPCSource{ws: ws, rpc: rpc, filter: filter}
}

// Subscribe subscribes to logs mentioning the filter keys.
func (s *RPCSource) Subscribe(ctx context.Context) (<-chan solana.LogNotification, error) {
	return s.ws.SubscribeLogs(ctx, s.filter)
}

// Transaction fetches the transaction with getTransaction.
func (s *RPCSource) Transaction(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	sig, err := solana.ParseSignature(signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	tx, err := s.rpc.GetTransaction(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return RecordFromConfirmed(signature, tx), nil
}
