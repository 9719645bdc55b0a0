package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/storage"
)

// EscrowEventStore implements storage.EscrowEventStore using ClickHouse.
type EscrowEventStore struct {
	conn *Conn
}

// NewEscrowEventStore creates a new EscrowEventStore.
func NewEscrowEventStore(conn *Conn) *EscrowEventStore {
	return &EscrowEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EscrowEventStore = (*EscrowEventStore)(nil)

const selectEscrowEventColumns = `
	SELECT
		event_id, kind, signature, log_index, slot, timestamp_ms,
		escrow, maker, taker, mint_a, mint_b, seed, amount_a, amount_b
	FROM escrow_events FINAL
`

const escrowEventOrder = `ORDER BY slot ASC, signature ASC, log_index ASC`

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EscrowEventStore) InsertBulk(ctx context.Context, events []*domain.EscrowEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_escrow_events", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || !e.Kind.IsValid() {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.DuplicateEventID(e.EventID)
		}
		seen[e.EventID] = struct{}{}
	}

	// ReplacingMergeTree would collapse re-inserts; reject them to keep append-only semantics.
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.DuplicateEventID(e.EventID)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO escrow_events (
			event_id, kind, signature, log_index, slot, timestamp_ms,
			escrow, maker, taker, mint_a, mint_b, seed, amount_a, amount_b
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, string(e.Kind), e.Signature, int32(e.LogIndex), e.Slot, e.Timestamp,
			e.Escrow, e.Maker, e.Taker, e.MintA, e.MintB, e.Seed, e.AmountA, e.AmountB,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEscrow retrieves the lifecycle of one escrow account.
func (s *EscrowEventStore) GetByEscrow(ctx context.Context, escrow string) (_ []*domain.EscrowEvent, err error) {
	defer func(start time.Time) { observe("get_escrow_events", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, selectEscrowEventColumns+`WHERE escrow = ? `+escrowEventOrder, escrow)
	if err != nil {
		return nil, fmt.Errorf("query by escrow: %w", err)
	}
	defer rows.Close()

	return scanEscrowEvents(rows)
}

// GetByMaker retrieves all events for escrows opened by maker.
func (s *EscrowEventStore) GetByMaker(ctx context.Context, maker string) (_ []*domain.EscrowEvent, err error) {
	defer func(start time.Time) { observe("get_escrow_events_by_maker", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, selectEscrowEventColumns+`WHERE maker = ? `+escrowEventOrder, maker)
	if err != nil {
		return nil, fmt.Errorf("query by maker: %w", err)
	}
	defer rows.Close()

	return scanEscrowEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *EscrowEventStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.EscrowEvent, err error) {
	defer func(t time.Time) { observe("get_escrow_events_by_time", t, err) }(time.Now())

	rows, err := s.conn.Query(ctx,
		selectEscrowEventColumns+`WHERE timestamp_ms >= ? AND timestamp_ms <= ? `+escrowEventOrder,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEscrowEvents(rows)
}

// Summary returns event counts and volumes per kind.
func (s *EscrowEventStore) Summary(ctx context.Context) (_ []*domain.EscrowSummary, err error) {
	defer func(start time.Time) { observe("escrow_summary", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT kind, count() AS events, sum(amount_a) AS volume_a, sum(amount_b) AS volume_b
		FROM escrow_events FINAL
		GROUP BY kind
		ORDER BY kind ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var result []*domain.EscrowSummary
	for rows.Next() {
		var (
			kind  string
			count uint64
			sum   domain.EscrowSummary
		)
		if err := rows.Scan(&kind, &count, &sum.VolumeA, &sum.VolumeB); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		sum.Kind = domain.EscrowEventKind(kind)
		sum.Count = int64(count)
		result = append(result, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return result, nil
}

// exists checks if an event with the given ID exists.
func (s *EscrowEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM escrow_events WHERE event_id = ?
	`, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanEscrowEvents scans rows into a slice of EscrowEvent.
func scanEscrowEvents(rows driver.Rows) ([]*domain.EscrowEvent, error) {
	var events []*domain.EscrowEvent

	for rows.Next() {
		var (
			e        domain.EscrowEvent
			kind     string
			logIndex int32
		)
		err := rows.Scan(
			&e.EventID, &kind, &e.Signature, &logIndex, &e.Slot, &e.Timestamp,
			&e.Escrow, &e.Maker, &e.Taker, &e.MintA, &e.MintB, &e.Seed, &e.AmountA, &e.AmountB,
		)
		if err != nil {
			return nil, fmt.Errorf("scan escrow event row: %w", err)
		}
		e.Kind = domain.EscrowEventKind(kind)
		e.LogIndex = int(logIndex)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow event rows: %w", err)
	}

	return events, nil
}
