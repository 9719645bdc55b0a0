package escrow

import (
	"strings"

	"escrow-lab/internal/anchor"
	"escrow-lab/internal/solana"
)

// EscrowMade is emitted when a maker opens an escrow.
type EscrowMade struct {
	Escrow  solana.PublicKey
	Maker   solana.PublicKey
	MintA   solana.PublicKey
	MintB   solana.PublicKey
	Seed    uint64
	Deposit uint64
	Receive uint64
}

func (EscrowMade) EventName() string { return "EscrowMade" }

// EscrowTaken is emitted when a taker completes the swap. Amount is the
// mint A quantity released from the vault.
type EscrowTaken struct {
	Escrow  solana.PublicKey
	Maker   solana.PublicKey
	Taker   solana.PublicKey
	MintA   solana.PublicKey
	MintB   solana.PublicKey
	Seed    uint64
	Amount  uint64
	Receive uint64
}

func (EscrowTaken) EventName() string { return "EscrowTaken" }

// EscrowRefunded is emitted when the maker cancels and recovers the deposit.
type EscrowRefunded struct {
	Escrow solana.PublicKey
	Maker  solana.PublicKey
	MintA  solana.PublicKey
	Seed   uint64
	Amount uint64
}

func (EscrowRefunded) EventName() string { return "EscrowRefunded" }

// LoggedEvent is an event found in transaction logs.
type LoggedEvent struct {
	// LogIndex is the position of the "Program data:" line in the logs.
	LogIndex int
	Event    anchor.Event
}

// ParseEvent decodes a single log line into one of the escrow events.
func ParseEvent(log string) (anchor.Event, bool, error) {
	candidates := []anchor.Event{&EscrowMade{}, &EscrowTaken{}, &EscrowRefunded{}}
	for _, ev := range candidates {
		ok, err := anchor.DecodeEvent(log, ev)
		if err != nil {
			return nil, true, err
		}
		if ok {
			return ev, true, nil
		}
	}
	return nil, false, nil
}

// ParseEvents returns the escrow events in logs that were written while
// programID was the executing program. Data lines from other programs are
// skipped even when their bytes happen to decode.
func ParseEvents(logs []string, programID solana.PublicKey) ([]LoggedEvent, error) {
	var (
		stack  []string
		events []LoggedEvent
		self   = programID.String()
	)
	for i, line := range logs {
		program, verb := runtimeLine(line)
		switch {
		case verb == "invoke":
			stack = append(stack, program)
		case verb == "success" || verb == "failed:":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case strings.HasPrefix(line, anchor.ProgramDataPrefix):
			if len(stack) == 0 || stack[len(stack)-1] != self {
				continue
			}
			ev, ok, err := ParseEvent(line)
			if err != nil {
				return nil, err
			}
			if ok {
				events = append(events, LoggedEvent{LogIndex: i, Event: ev})
			}
		}
	}
	return events, nil
}

// runtimeLine splits "Program <id> <verb> ..." lines written by the runtime.
func runtimeLine(line string) (program, verb string) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "Program" || strings.HasSuffix(fields[1], ":") {
		return "", ""
	}
	return fields[1], fields[2]
}
