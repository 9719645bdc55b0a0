package solana

import "context"

// RPCClient defines the JSON-RPC surface used against an escrowd ledger.
type RPCClient interface {
	// GetAccountInfo returns nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey PublicKey) (*AccountInfo, error)

	GetBalance(ctx context.Context, pubkey PublicKey) (uint64, error)

	GetLatestBlockhash(ctx context.Context) (Hash, error)

	// RequestAirdrop credits lamports and returns the airdrop signature.
	RequestAirdrop(ctx context.Context, pubkey PublicKey, lamports uint64) (Signature, error)

	// SendTransaction submits a signed transaction.
	SendTransaction(ctx context.Context, tx *Transaction) (Signature, error)

	// SimulateTransaction executes without committing.
	SimulateTransaction(ctx context.Context, tx *Transaction) (*SimulationResult, error)

	// GetTransaction returns nil when the signature is unknown.
	GetTransaction(ctx context.Context, signature Signature) (*ConfirmedTransaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address PublicKey, opts *SignaturesOpts) ([]SignatureInfo, error)

	GetSlot(ctx context.Context) (uint64, error)

	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (uint64, error)

	GetTokenAccountBalance(ctx context.Context, account PublicKey) (*TokenAmount, error)
}
