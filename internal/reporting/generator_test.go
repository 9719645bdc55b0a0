package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/storage/memory"
)

func strPtr(s string) *string { return &s }

func made(sig string, slot int64, escrow string, deposit, receive uint64) *domain.EscrowEvent {
	return &domain.EscrowEvent{
		EventID:   sig + "-made",
		Kind:      domain.EscrowMade,
		Signature: sig,
		Slot:      slot,
		Timestamp: slot * 400,
		Escrow:    escrow,
		Maker:     "maker",
		MintA:     "mintA",
		MintB:     strPtr("mintB"),
		Seed:      uint64(slot),
		AmountA:   deposit,
		AmountB:   receive,
	}
}

func closed(kind domain.EscrowEventKind, sig string, slot int64, escrow string, amount uint64) *domain.EscrowEvent {
	e := &domain.EscrowEvent{
		EventID:   sig + "-" + kind.String(),
		Kind:      kind,
		Signature: sig,
		Slot:      slot,
		Timestamp: slot * 400,
		Escrow:    escrow,
		Maker:     "maker",
		MintA:     "mintA",
		AmountA:   amount,
	}
	if kind == domain.EscrowTaken {
		e.Taker = strPtr("taker")
		e.MintB = strPtr("mintB")
	}
	return e
}

func setupTestData(t *testing.T) (*memory.TransactionStore, *memory.EscrowEventStore) {
	ctx := context.Background()

	txStore := memory.NewTransactionStore()
	eventStore := memory.NewEscrowEventStore()

	txs := []*domain.TransactionRecord{
		{Signature: "tx1", Slot: 10, BlockTime: 4000, Fee: 5000, ComputeUnits: 20000, Success: true},
		{Signature: "tx2", Slot: 11, BlockTime: 4400, Fee: 5000, ComputeUnits: 30000, Success: true},
		{Signature: "tx3", Slot: 12, BlockTime: 4800, Fee: 5000, ComputeUnits: 1000, Success: false, Err: strPtr(`{"InstructionError":[0,{"Custom":2006}]}`)},
		{Signature: "tx4", Slot: 13, BlockTime: 5200, Fee: 10000, ComputeUnits: 25000, Success: true},
		{Signature: "tx5", Slot: 14, BlockTime: 5600, Fee: 5000, ComputeUnits: 900, Success: false, Err: strPtr(`{"InstructionError":[0,{"Custom":2006}]}`)},
	}
	if err := txStore.InsertBulk(ctx, txs); err != nil {
		t.Fatalf("InsertBulk transactions failed: %v", err)
	}

	events := []*domain.EscrowEvent{
		made("tx1", 10, "escrow1", 100, 250),
		closed(domain.EscrowTaken, "tx2", 11, "escrow1", 100),
		made("tx4", 13, "escrow2", 40, 80),
	}
	if err := eventStore.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk events failed: %v", err)
	}

	return txStore, eventStore
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()

	// Fixed time for deterministic output
	fixedTime := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	fixedClock := func() time.Time { return fixedTime }

	var first string
	for run := 0; run < 5; run++ {
		txStore, eventStore := setupTestData(t)
		report, err := NewGenerator(txStore, eventStore).WithClock(fixedClock).Generate(ctx)
		if err != nil {
			t.Fatalf("Run %d: Generate failed: %v", run, err)
		}

		out := RenderMarkdown(report) + RenderCSV(report.Escrows)
		if run == 0 {
			first = out
			continue
		}
		if out != first {
			t.Errorf("Run %d: output differs from first run", run)
		}
	}
}

func TestGenerate_Summary(t *testing.T) {
	ctx := context.Background()
	txStore, eventStore := setupTestData(t)

	report, err := NewGenerator(txStore, eventStore).Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := DataSummary{
		TotalTransactions:  5,
		FailedTransactions: 2,
		TotalFees:          30000,
		TotalComputeUnits:  76900,
		SlotRangeStart:     10,
		SlotRangeEnd:       14,
		DateRangeStart:     4000,
		DateRangeEnd:       5600,
	}
	if report.DataSummary != want {
		t.Errorf("DataSummary = %+v, want %+v", report.DataSummary, want)
	}

	if len(report.EventSummary) != 2 {
		t.Fatalf("Expected 2 event kinds, got %d", len(report.EventSummary))
	}
	if report.EventSummary[0].Kind != "made" || report.EventSummary[0].Count != 2 || report.EventSummary[0].VolumeA != 140 {
		t.Errorf("Unexpected made summary: %+v", report.EventSummary[0])
	}
	if report.EventSummary[1].Kind != "taken" || report.EventSummary[1].Count != 1 {
		t.Errorf("Unexpected taken summary: %+v", report.EventSummary[1])
	}

	if len(report.Failures) != 1 || report.Failures[0].Count != 2 {
		t.Errorf("Expected one failure group of 2, got %+v", report.Failures)
	}
	if len(report.IntegrityErrors) != 0 {
		t.Errorf("Unexpected integrity errors: %v", report.IntegrityErrors)
	}
}

func TestGenerate_Empty(t *testing.T) {
	report, err := NewGenerator(memory.NewTransactionStore(), memory.NewEscrowEventStore()).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.DataSummary != (DataSummary{}) {
		t.Errorf("Expected zero summary, got %+v", report.DataSummary)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{"No escrow events indexed.", "No failed transactions.", "Lifecycles: 0 | Open: 0"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
}

func TestBuildLifecycles(t *testing.T) {
	events := []*domain.EscrowEvent{
		// Out of order on purpose
		closed(domain.EscrowRefunded, "sigC", 7, "escrow1", 100),
		made("sigA", 3, "escrow1", 100, 5),
		closed(domain.EscrowTaken, "sigB", 5, "escrow2", 9),
		made("sigD", 9, "escrow1", 50, 5),
	}

	rows, errs := BuildLifecycles(events)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 lifecycles, got %d", len(rows))
	}

	first := rows[0]
	if first.Status != StatusRefunded || first.OpenedSlot != 3 || first.ClosedSlot != 7 || first.CloseSignature != "sigC" {
		t.Errorf("Unexpected first lifecycle: %+v", first)
	}

	// Seed reuse after close opens a new lifecycle at the same address
	second := rows[1]
	if second.Escrow != "escrow1" || second.Status != StatusOpen || second.OpenedSlot != 9 || second.ClosedSlot != 0 {
		t.Errorf("Unexpected second lifecycle: %+v", second)
	}

	if len(errs) != 1 || !strings.Contains(errs[0], "escrow2 taken at slot 5 without an open make") {
		t.Errorf("Unexpected integrity errors: %v", errs)
	}
}

func TestBuildLifecycles_Anomalies(t *testing.T) {
	events := []*domain.EscrowEvent{
		made("sigA", 1, "escrow1", 100, 5),
		made("sigB", 2, "escrow1", 100, 5),
		closed(domain.EscrowTaken, "sigC", 3, "escrow1", 60),
	}

	rows, errs := BuildLifecycles(events)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 lifecycle, got %d", len(rows))
	}
	if rows[0].Status != StatusTaken || rows[0].Taker != "taker" {
		t.Errorf("Unexpected lifecycle: %+v", rows[0])
	}
	if len(errs) != 2 {
		t.Fatalf("Expected 2 integrity errors, got %v", errs)
	}
	if !strings.Contains(errs[0], "made again at slot 2") {
		t.Errorf("Unexpected first error: %s", errs[0])
	}
	if !strings.Contains(errs[1], "taken 60 of mint A but 100 was deposited") {
		t.Errorf("Unexpected second error: %s", errs[1])
	}
}

func TestRenderCSV(t *testing.T) {
	rows, _ := BuildLifecycles([]*domain.EscrowEvent{
		made("sigA", 3, "escrow1", 100, 5),
		closed(domain.EscrowTaken, "sigB", 4, "escrow1", 100),
	})

	lines := strings.Split(strings.TrimSpace(RenderCSV(rows)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header and 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "escrow,maker,taker,") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	want := "escrow1,maker,taker,mintA,mintB,3,100,5,taken,3,4,sigA,sigB"
	if lines[1] != want {
		t.Errorf("Row = %s, want %s", lines[1], want)
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	txStore, eventStore := setupTestData(t)
	report, err := NewGenerator(txStore, eventStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	report.IntegrityErrors = []string{"escrow x taken at slot 1 without an open make"}

	md := RenderMarkdown(report)
	for _, section := range []string{
		"# Escrow Activity Report",
		"## Data Summary",
		"## Events",
		"## Failed Transactions",
		"## Escrows",
		"Lifecycles: 2 | Open: 1",
		"## Integrity Errors",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing %q", section)
		}
	}
}
