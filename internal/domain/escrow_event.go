package domain

// EscrowEventKind is the lifecycle step an escrow event records.
type EscrowEventKind string

const (
	EscrowMade     EscrowEventKind = "made"
	EscrowTaken    EscrowEventKind = "taken"
	EscrowRefunded EscrowEventKind = "refunded"
)

// String returns the string representation of EscrowEventKind.
func (k EscrowEventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k EscrowEventKind) IsValid() bool {
	return k == EscrowMade || k == EscrowTaken || k == EscrowRefunded
}

// EscrowEvent is a decoded escrow program event.
type EscrowEvent struct {
	EventID   string          // SHA256(signature|log_index|kind)
	Kind      EscrowEventKind // made, taken or refunded
	Signature string          // transaction signature
	LogIndex  int             // index of the "Program data:" line in the logs
	Slot      int64           // slot the transaction was processed at
	Timestamp int64           // Unix timestamp in milliseconds
	Escrow    string          // escrow PDA
	Maker     string
	Taker     *string // set for taken events
	MintA     string
	MintB     *string // not carried by refunded events
	Seed      uint64
	AmountA   uint64 // mint A deposited, released or returned
	AmountB   uint64 // mint B requested (made) or paid (taken)
}

// EscrowSummary aggregates events of one kind.
type EscrowSummary struct {
	Kind    EscrowEventKind
	Count   int64
	VolumeA uint64
	VolumeB uint64
}
