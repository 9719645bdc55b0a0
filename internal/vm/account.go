// Package vm defines the contract between the ledger runtime and the native
// programs it executes: accounts, the invoke context, and instruction errors.
package vm

import (
	"bytes"
	"math/bits"

	"escrow-lab/internal/solana"
)

// MaxPermittedDataLength bounds account data size (10 MiB).
const MaxPermittedDataLength = 10 * 1024 * 1024

// Account is the stored state of an address.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
	RentEpoch  uint64
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Equal reports whether two accounts hold identical state.
func (a *Account) Equal(b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

// DataIsZeroed reports whether every data byte is zero.
func (a *Account) DataIsZeroed() bool {
	for _, b := range a.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// AccountInfo is an account as seen by a program invocation. Infos that share
// a key share the same *Account.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}

// IsOwnedBy reports whether the account is owned by program.
func (ai *AccountInfo) IsOwnedBy(program solana.PublicKey) bool {
	return ai.Owner == program
}

// Realloc resizes data, zero-filling any growth.
func (ai *AccountInfo) Realloc(n int) error {
	if n < 0 || n > MaxPermittedDataLength {
		return ErrInvalidRealloc
	}
	if n <= len(ai.Data) {
		ai.Data = ai.Data[:n:n]
		return nil
	}
	grown := make([]byte, n)
	copy(grown, ai.Data)
	ai.Data = grown
	return nil
}

// MoveLamports debits from and credits to with overflow checks.
func MoveLamports(from, to *AccountInfo, amount uint64) error {
	if from.Lamports < amount {
		return ErrInsufficientFunds
	}
	sum, carry := bits.Add64(to.Lamports, amount, 0)
	if carry != 0 {
		return ErrArithmeticOverflow
	}
	from.Lamports -= amount
	to.Lamports = sum
	return nil
}
