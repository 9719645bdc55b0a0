package memory

import (
	"context"
	"sort"
	"sync"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/storage"
)

// EscrowEventStore is an in-memory implementation of storage.EscrowEventStore.
type EscrowEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EscrowEvent // keyed by event_id
}

// NewEscrowEventStore creates a new in-memory escrow event store.
func NewEscrowEventStore() *EscrowEventStore {
	return &EscrowEventStore{
		data: make(map[string]*domain.EscrowEvent),
	}
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EscrowEventStore) InsertBulk(_ context.Context, events []*domain.EscrowEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || !e.Kind.IsValid() {
			return storage.ErrInvalidInput
		}
		_, stored := s.data[e.EventID]
		_, repeated := batchKeys[e.EventID]
		if stored || repeated {
			return storage.DuplicateEventID(e.EventID)
		}
		batchKeys[e.EventID] = struct{}{}
	}

	for _, e := range events {
		copy := *e
		s.data[e.EventID] = &copy
	}

	return nil
}

// GetByEscrow retrieves the lifecycle of one escrow account.
func (s *EscrowEventStore) GetByEscrow(_ context.Context, escrow string) ([]*domain.EscrowEvent, error) {
	return s.filter(func(e *domain.EscrowEvent) bool { return e.Escrow == escrow }), nil
}

// GetByMaker retrieves all events for escrows opened by maker.
func (s *EscrowEventStore) GetByMaker(_ context.Context, maker string) ([]*domain.EscrowEvent, error) {
	return s.filter(func(e *domain.EscrowEvent) bool { return e.Maker == maker }), nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *EscrowEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.EscrowEvent, error) {
	return s.filter(func(e *domain.EscrowEvent) bool {
		return e.Timestamp >= start && e.Timestamp <= end
	}), nil
}

// Summary returns event counts and volumes per kind.
func (s *EscrowEventStore) Summary(_ context.Context) ([]*domain.EscrowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKind := make(map[domain.EscrowEventKind]*domain.EscrowSummary)
	for _, e := range s.data {
		sum, ok := byKind[e.Kind]
		if !ok {
			sum = &domain.EscrowSummary{Kind: e.Kind}
			byKind[e.Kind] = sum
		}
		sum.Count++
		sum.VolumeA += e.AmountA
		sum.VolumeB += e.AmountB
	}

	result := make([]*domain.EscrowSummary, 0, len(byKind))
	for _, sum := range byKind {
		result = append(result, sum)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})

	return result, nil
}

func (s *EscrowEventStore) filter(keep func(*domain.EscrowEvent) bool) []*domain.EscrowEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EscrowEvent
	for _, e := range s.data {
		if keep(e) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.Signature != b.Signature {
			return a.Signature < b.Signature
		}
		return a.LogIndex < b.LogIndex
	})

	return result
}

var _ storage.EscrowEventStore = (*EscrowEventStore)(nil)
