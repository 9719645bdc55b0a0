package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Escrow Activity Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Transactions | %d |\n", r.DataSummary.TotalTransactions))
	sb.WriteString(fmt.Sprintf("| Failed Transactions | %d |\n", r.DataSummary.FailedTransactions))
	sb.WriteString(fmt.Sprintf("| Fees (lamports) | %d |\n", r.DataSummary.TotalFees))
	sb.WriteString(fmt.Sprintf("| Compute Units | %d |\n", r.DataSummary.TotalComputeUnits))
	sb.WriteString(fmt.Sprintf("| Slot Range | %d - %d |\n", r.DataSummary.SlotRangeStart, r.DataSummary.SlotRangeEnd))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Events
	sb.WriteString("## Events\n\n")
	if len(r.EventSummary) > 0 {
		sb.WriteString("| Kind | Count | Volume A | Volume B |\n")
		sb.WriteString("|------|-------|----------|----------|\n")
		for _, e := range r.EventSummary {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", e.Kind, e.Count, e.VolumeA, e.VolumeB))
		}
	} else {
		sb.WriteString("No escrow events indexed.\n")
	}
	sb.WriteString("\n")

	// Failures
	sb.WriteString("## Failed Transactions\n\n")
	if len(r.Failures) > 0 {
		sb.WriteString("| Error | Count |\n")
		sb.WriteString("|-------|-------|\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("| `%s` | %d |\n", f.Err, f.Count))
		}
	} else {
		sb.WriteString("No failed transactions.\n")
	}
	sb.WriteString("\n")

	// Escrows
	open := 0
	for _, e := range r.Escrows {
		if e.Status == StatusOpen {
			open++
		}
	}
	sb.WriteString("## Escrows\n\n")
	sb.WriteString(fmt.Sprintf("Lifecycles: %d | Open: %d\n\n", len(r.Escrows), open))
	if len(r.Escrows) > 0 {
		sb.WriteString("| Escrow | Maker | Seed | Deposit | Receive | Status | Opened | Closed |\n")
		sb.WriteString("|--------|-------|------|---------|---------|--------|--------|--------|\n")
		for _, e := range r.Escrows {
			closed := "-"
			if e.Status != StatusOpen {
				closed = fmt.Sprintf("%d", e.ClosedSlot)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s | %d | %s |\n",
				e.Escrow, e.Maker, e.Seed, e.Deposit, e.Receive, e.Status, e.OpenedSlot, closed))
		}
		sb.WriteString("\n")
	}

	// Integrity errors (only shown if present)
	if len(r.IntegrityErrors) > 0 {
		sb.WriteString("## Integrity Errors\n\n")
		for _, err := range r.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
