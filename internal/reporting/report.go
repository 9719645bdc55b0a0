package reporting

import "time"

// Report is the escrow activity report built from indexed data.
type Report struct {
	// Metadata
	GeneratedAt time.Time

	DataSummary DataSummary

	// Event totals per kind, ordered by kind
	EventSummary []EventSummaryRow

	// Failed transactions grouped by error, most frequent first
	Failures []FailureRow

	// One row per escrow lifecycle, ordered by (opened slot, escrow)
	Escrows []EscrowRow

	// Event sequences that no valid lifecycle produces
	IntegrityErrors []string
}

// DataSummary describes the indexed transactions.
type DataSummary struct {
	TotalTransactions  int
	FailedTransactions int
	TotalFees          int64 // lamports
	TotalComputeUnits  int64
	SlotRangeStart     int64
	SlotRangeEnd       int64
	DateRangeStart     int64 // Unix ms
	DateRangeEnd       int64 // Unix ms
}

// EventSummaryRow aggregates events of one kind.
type EventSummaryRow struct {
	Kind    string
	Count   int64
	VolumeA uint64
	VolumeB uint64
}

// FailureRow counts failed transactions with the same error.
type FailureRow struct {
	Err   string
	Count int
}

// EscrowStatus is where an escrow lifecycle ended up.
type EscrowStatus string

const (
	StatusOpen     EscrowStatus = "open"
	StatusTaken    EscrowStatus = "taken"
	StatusRefunded EscrowStatus = "refunded"
)

// EscrowRow is one make followed by at most one take or refund. The same
// escrow address appears again when the maker reuses a seed after closing.
type EscrowRow struct {
	Escrow         string
	Maker          string
	Taker          string // empty unless taken
	MintA          string
	MintB          string
	Seed           uint64
	Deposit        uint64 // mint A locked by make
	Receive        uint64 // mint B requested
	Status         EscrowStatus
	OpenedSlot     int64
	ClosedSlot     int64 // 0 while open
	OpenSignature  string
	CloseSignature string
}
