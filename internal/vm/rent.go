package vm

// AccountStorageOverhead is the per-account byte overhead charged for rent.
const AccountStorageOverhead = 128

// Rent holds rent parameters.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// DefaultRent matches mainnet parameters.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2}

// MinimumBalance is the lamports needed for dataLen bytes to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (AccountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionThreshold
}

// IsExempt reports whether lamports cover dataLen bytes.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

// RentState classifies an account for the post-transaction rent check.
type RentState int

const (
	RentUninitialized RentState = iota
	RentPaying
	RentExempt
)

// State classifies an account.
func (r Rent) State(a *Account) RentState {
	switch {
	case a == nil || a.Lamports == 0:
		return RentUninitialized
	case r.IsExempt(a.Lamports, len(a.Data)):
		return RentExempt
	default:
		return RentPaying
	}
}
