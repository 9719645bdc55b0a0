package indexer

import (
	"errors"
	"sort"

	"escrow-lab/internal/domain"
)

// ErrInvalidOrdering is returned when records are not properly ordered.
var ErrInvalidOrdering = errors.New("records are not in deterministic order")

// SortRecords orders transactions by (slot ASC, signature ASC).
func SortRecords(records []*domain.TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return compareRecords(records[i], records[j]) < 0
	})
}

// SortEvents orders events by (slot ASC, signature ASC, log_index ASC).
func SortEvents(events []*domain.EscrowEvent) {
	sort.Slice(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// ValidateRecordOrdering checks that records are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateRecordOrdering(records []*domain.TransactionRecord) error {
	for i := 1; i < len(records); i++ {
		if compareRecords(records[i-1], records[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// ValidateEventOrdering checks that events are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateEventOrdering(events []*domain.EscrowEvent) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(events[i-1], events[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareRecords returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (slot ASC, signature ASC)
func compareRecords(a, b *domain.TransactionRecord) int {
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Signature != b.Signature {
		if a.Signature < b.Signature {
			return -1
		}
		return 1
	}
	return 0
}

// compareEvents orders events by (slot ASC, signature ASC, log_index ASC).
func compareEvents(a, b *domain.EscrowEvent) int {
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Signature != b.Signature {
		if a.Signature < b.Signature {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}
