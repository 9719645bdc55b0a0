package indexer

import (
	"errors"
	"testing"

	"escrow-lab/internal/domain"
)

func TestSortRecords(t *testing.T) {
	records := []*domain.TransactionRecord{
		{Signature: "c", Slot: 2},
		{Signature: "b", Slot: 1},
		{Signature: "a", Slot: 2},
		{Signature: "z", Slot: 0},
	}

	SortRecords(records)

	want := []string{"z", "b", "a", "c"}
	for i, sig := range want {
		if records[i].Signature != sig {
			t.Errorf("position %d: got %s, want %s", i, records[i].Signature, sig)
		}
	}
	if err := ValidateRecordOrdering(records); err != nil {
		t.Errorf("sorted records should validate: %v", err)
	}
}

func TestValidateRecordOrdering(t *testing.T) {
	tests := []struct {
		name    string
		records []*domain.TransactionRecord
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []*domain.TransactionRecord{{Signature: "a", Slot: 1}, {Signature: "b", Slot: 1}}, false},
		{"slot regression", []*domain.TransactionRecord{{Signature: "a", Slot: 2}, {Signature: "b", Slot: 1}}, true},
		{"duplicate", []*domain.TransactionRecord{{Signature: "a", Slot: 1}, {Signature: "a", Slot: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecordOrdering(tt.records)
			if tt.wantErr != errors.Is(err, ErrInvalidOrdering) {
				t.Errorf("ValidateRecordOrdering() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSortEvents(t *testing.T) {
	events := []*domain.EscrowEvent{
		{EventID: "3", Signature: "b", Slot: 1, LogIndex: 9},
		{EventID: "2", Signature: "b", Slot: 1, LogIndex: 4},
		{EventID: "4", Signature: "a", Slot: 2, LogIndex: 0},
		{EventID: "1", Signature: "a", Slot: 1, LogIndex: 7},
	}

	SortEvents(events)

	for i, e := range events {
		if want := string(rune('1' + i)); e.EventID != want {
			t.Errorf("position %d: got %s, want %s", i, e.EventID, want)
		}
	}
	if err := ValidateEventOrdering(events); err != nil {
		t.Errorf("sorted events should validate: %v", err)
	}

	events[0], events[1] = events[1], events[0]
	if err := ValidateEventOrdering(events); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering, got %v", err)
	}
}
