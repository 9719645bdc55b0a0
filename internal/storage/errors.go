package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested transaction, event or
	// checkpoint does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a signature or event ID is already
	// stored. Transactions and events are never updated.
	ErrDuplicateKey = errors.New("already stored")

	// ErrInvalidInput is returned for records missing their key or kind.
	ErrInvalidInput = errors.New("invalid input")
)

// Record kinds named by DuplicateError.
const (
	RecordTransaction = "transaction"
	RecordEscrowEvent = "escrow event"
)

// DuplicateError reports which record collided. It matches ErrDuplicateKey
// under errors.Is.
type DuplicateError struct {
	Record string // RecordTransaction or RecordEscrowEvent
	Key    string // signature or event ID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Record, e.Key, ErrDuplicateKey)
}

// Is reports whether target is ErrDuplicateKey.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// DuplicateSignature returns the error for a transaction signature that is
// already stored.
func DuplicateSignature(signature string) error {
	return &DuplicateError{Record: RecordTransaction, Key: signature}
}

// DuplicateEventID returns the error for an escrow event ID that is already
// stored.
func DuplicateEventID(eventID string) error {
	return &DuplicateError{Record: RecordEscrowEvent, Key: eventID}
}

// DuplicateKeyOf returns the colliding signature or event ID carried by err,
// if any.
func DuplicateKeyOf(err error) (string, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Key, true
	}
	return "", false
}
