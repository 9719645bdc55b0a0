// Package reporting builds escrow activity reports from the indexer stores.
package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	txStore    storage.TransactionStore
	eventStore storage.EscrowEventStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(txStore storage.TransactionStore, eventStore storage.EscrowEventStore) *Generator {
	return &Generator{
		txStore:    txStore,
		eventStore: eventStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	txs, err := g.txStore.GetBySlotRange(ctx, 0, math.MaxInt64)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	summary, err := g.eventStore.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("load event summary: %w", err)
	}

	events, err := g.eventStore.GetByTimeRange(ctx, 0, math.MaxInt64)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	escrows, integrityErrors := BuildLifecycles(events)

	return &Report{
		GeneratedAt:     g.now(),
		DataSummary:     summarizeTransactions(txs),
		EventSummary:    eventSummaryRows(summary),
		Failures:        failureRows(txs),
		Escrows:         escrows,
		IntegrityErrors: integrityErrors,
	}, nil
}

// summarizeTransactions computes totals and ranges. txs are in slot order.
func summarizeTransactions(txs []*domain.TransactionRecord) DataSummary {
	var s DataSummary
	if len(txs) == 0 {
		return s
	}

	s.TotalTransactions = len(txs)
	s.SlotRangeStart = txs[0].Slot
	s.SlotRangeEnd = txs[len(txs)-1].Slot
	s.DateRangeStart = txs[0].BlockTime
	s.DateRangeEnd = txs[0].BlockTime
	for _, tx := range txs {
		if !tx.Success {
			s.FailedTransactions++
		}
		s.TotalFees += tx.Fee
		s.TotalComputeUnits += tx.ComputeUnits
		if tx.BlockTime < s.DateRangeStart {
			s.DateRangeStart = tx.BlockTime
		}
		if tx.BlockTime > s.DateRangeEnd {
			s.DateRangeEnd = tx.BlockTime
		}
	}
	return s
}

func eventSummaryRows(summary []*domain.EscrowSummary) []EventSummaryRow {
	rows := make([]EventSummaryRow, 0, len(summary))
	for _, s := range summary {
		rows = append(rows, EventSummaryRow{
			Kind:    s.Kind.String(),
			Count:   s.Count,
			VolumeA: s.VolumeA,
			VolumeB: s.VolumeB,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Kind < rows[j].Kind })
	return rows
}

// failureRows groups failed transactions by error, most frequent first and
// then by error text.
func failureRows(txs []*domain.TransactionRecord) []FailureRow {
	counts := make(map[string]int)
	for _, tx := range txs {
		if tx.Success {
			continue
		}
		msg := "unknown"
		if tx.Err != nil {
			msg = *tx.Err
		}
		counts[msg]++
	}

	rows := make([]FailureRow, 0, len(counts))
	for msg, n := range counts {
		rows = append(rows, FailureRow{Err: msg, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Err < rows[j].Err
	})
	return rows
}

// BuildLifecycles replays events in (slot, signature, log index) order and
// returns one row per make, closed by the take or refund that follows it.
// Sequences no program execution can produce are reported as integrity
// errors and otherwise ignored.
func BuildLifecycles(events []*domain.EscrowEvent) ([]EscrowRow, []string) {
	ordered := make([]*domain.EscrowEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.Signature != b.Signature {
			return a.Signature < b.Signature
		}
		return a.LogIndex < b.LogIndex
	})

	var rows []EscrowRow
	var errs []string
	open := make(map[string]int) // escrow -> index into rows

	for _, e := range ordered {
		idx, isOpen := open[e.Escrow]

		switch e.Kind {
		case domain.EscrowMade:
			if isOpen {
				errs = append(errs, fmt.Sprintf("escrow %s made again at slot %d while open since slot %d",
					e.Escrow, e.Slot, rows[idx].OpenedSlot))
				continue
			}
			row := EscrowRow{
				Escrow:        e.Escrow,
				Maker:         e.Maker,
				MintA:         e.MintA,
				Seed:          e.Seed,
				Deposit:       e.AmountA,
				Receive:       e.AmountB,
				Status:        StatusOpen,
				OpenedSlot:    e.Slot,
				OpenSignature: e.Signature,
			}
			if e.MintB != nil {
				row.MintB = *e.MintB
			}
			open[e.Escrow] = len(rows)
			rows = append(rows, row)

		case domain.EscrowTaken, domain.EscrowRefunded:
			if !isOpen {
				errs = append(errs, fmt.Sprintf("escrow %s %s at slot %d without an open make",
					e.Escrow, e.Kind, e.Slot))
				continue
			}
			row := &rows[idx]
			row.ClosedSlot = e.Slot
			row.CloseSignature = e.Signature
			if e.Kind == domain.EscrowTaken {
				row.Status = StatusTaken
				if e.Taker != nil {
					row.Taker = *e.Taker
				}
			} else {
				row.Status = StatusRefunded
			}
			if e.AmountA != row.Deposit {
				errs = append(errs, fmt.Sprintf("escrow %s %s %d of mint A but %d was deposited",
					e.Escrow, e.Kind, e.AmountA, row.Deposit))
			}
			delete(open, e.Escrow)

		default:
			errs = append(errs, fmt.Sprintf("event %s has unknown kind %q", e.EventID, e.Kind))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].OpenedSlot != rows[j].OpenedSlot {
			return rows[i].OpenedSlot < rows[j].OpenedSlot
		}
		return rows[i].Escrow < rows[j].Escrow
	})
	return rows, errs
}
