package domain

// TransactionRecord is a processed ledger transaction as stored by the indexer.
// Failed transactions are recorded too; they were charged a fee.
type TransactionRecord struct {
	Signature    string   // base58 transaction signature
	Slot         int64    // slot the transaction was processed at
	BlockTime    int64    // Unix timestamp in milliseconds
	FeePayer     string   // first account key
	Fee          int64    // lamports charged
	ComputeUnits int64    // compute units consumed
	Success      bool     // false when execution failed
	Err          *string  // error description (nullable)
	Accounts     []string // account keys in message order
	Logs         []string // runtime log lines
}

// Mentions reports whether account appears in the transaction's account keys.
func (r *TransactionRecord) Mentions(account string) bool {
	for _, a := range r.Accounts {
		if a == account {
			return true
		}
	}
	return false
}
