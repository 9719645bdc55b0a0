package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders escrow lifecycles as CSV string.
func RenderCSV(escrows []EscrowRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("escrow,maker,taker,mint_a,mint_b,seed,deposit,receive,status,")
	sb.WriteString("opened_slot,closed_slot,open_signature,close_signature\n")

	// Rows
	for _, e := range escrows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%d,%d,%s,%d,%d,%s,%s\n",
			e.Escrow,
			e.Maker,
			e.Taker,
			e.MintA,
			e.MintB,
			e.Seed,
			e.Deposit,
			e.Receive,
			e.Status,
			e.OpenedSlot,
			e.ClosedSlot,
			e.OpenSignature,
			e.CloseSignature,
		))
	}

	return sb.String()
}
