package indexer

import (
	"encoding/json"
	"fmt"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/idhash"
	"escrow-lab/internal/programs/escrow"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
)

// RecordFromProcessed converts an in-process ledger transaction.
func RecordFromProcessed(ptx *svm.ProcessedTransaction) *domain.TransactionRecord {
	meta := ptx.Meta
	accounts := make([]string, len(meta.AccountKeys))
	for i, k := range meta.AccountKeys {
		accounts[i] = k.String()
	}
	return &domain.TransactionRecord{
		Signature:    meta.Signature.String(),
		Slot:         int64(meta.Slot),
		BlockTime:    meta.BlockTime * 1000,
		FeePayer:     firstOrEmpty(accounts),
		Fee:          int64(meta.Fee),
		ComputeUnits: int64(meta.ComputeUnitsConsumed),
		Success:      ptx.Err == nil,
		Err:          errorString(svm.ErrorJSON(ptx.Err)),
		Accounts:     accounts,
		Logs:         append([]string(nil), meta.Logs...),
	}
}

// RecordFromConfirmed converts a getTransaction response.
func RecordFromConfirmed(signature string, tx *solana.ConfirmedTransaction) *domain.TransactionRecord {
	rec := &domain.TransactionRecord{
		Signature: signature,
		Slot:      int64(tx.Slot),
		Success:   true,
	}
	if tx.BlockTime != nil {
		rec.BlockTime = *tx.BlockTime * 1000
	}
	if tx.Meta != nil {
		rec.Fee = int64(tx.Meta.Fee)
		rec.ComputeUnits = int64(tx.Meta.ComputeUnitsConsumed)
		rec.Success = tx.Meta.Err == nil
		rec.Err = errorString(tx.Meta.Err)
		rec.Logs = append([]string(nil), tx.Meta.LogMessages...)
	}
	if tx.Transaction != nil && tx.Transaction.Message != nil {
		rec.Accounts = append([]string(nil), tx.Transaction.Message.AccountKeys...)
	}
	rec.FeePayer = firstOrEmpty(rec.Accounts)
	return rec
}

// errorString renders a wire-format transaction error as JSON.
func errorString(v interface{}) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprint(v)
		return &s
	}
	s := string(b)
	return &s
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// DecodeEscrowEvents extracts the escrow events emitted by programID in rec.
// Failed transactions carry no events: their state changes were discarded.
func DecodeEscrowEvents(rec *domain.TransactionRecord, programID solana.PublicKey) ([]*domain.EscrowEvent, error) {
	if !rec.Success {
		return nil, nil
	}
	logged, err := escrow.ParseEvents(rec.Logs, programID)
	if err != nil {
		return nil, fmt.Errorf("parse events of %s: %w", rec.Signature, err)
	}

	events := make([]*domain.EscrowEvent, 0, len(logged))
	for _, l := range logged {
		e := &domain.EscrowEvent{
			Signature: rec.Signature,
			LogIndex:  l.LogIndex,
			Slot:      rec.Slot,
			Timestamp: rec.BlockTime,
		}
		switch ev := l.Event.(type) {
		case *escrow.EscrowMade:
			e.Kind = domain.EscrowMade
			e.Escrow = ev.Escrow.String()
			e.Maker = ev.Maker.String()
			e.MintA = ev.MintA.String()
			e.MintB = keyPtr(ev.MintB)
			e.Seed = ev.Seed
			e.AmountA = ev.Deposit
			e.AmountB = ev.Receive
		case *escrow.EscrowTaken:
			e.Kind = domain.EscrowTaken
			e.Escrow = ev.Escrow.String()
			e.Maker = ev.Maker.String()
			e.Taker = keyPtr(ev.Taker)
			e.MintA = ev.MintA.String()
			e.MintB = keyPtr(ev.MintB)
			e.Seed = ev.Seed
			e.AmountA = ev.Amount
			e.AmountB = ev.Receive
		case *escrow.EscrowRefunded:
			e.Kind = domain.EscrowRefunded
			e.Escrow = ev.Escrow.String()
			e.Maker = ev.Maker.String()
			e.MintA = ev.MintA.String()
			e.Seed = ev.Seed
			e.AmountA = ev.Amount
		default:
			continue
		}
		e.EventID = idhash.ComputeEventID(e.Signature, e.LogIndex, e.Kind.String())
		events = append(events, e)
	}
	return events, nil
}

func keyPtr(k solana.PublicKey) *string {
	s := k.String()
	return &s
}
