package anchor

import (
	"encoding/base64"
	"strings"

	"escrow-lab/internal/vm"
)

// ProgramDataPrefix starts every log line written by LogData.
const ProgramDataPrefix = "Program data: "

// Event is a Borsh-encodable struct emitted in program logs.
type Event interface {
	EventName() string
}

// Emit writes ev as a "Program data:" log: the event discriminator followed
// by the Borsh-encoded fields.
func Emit(ctx vm.Context, ev Event) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	ctx.LogData(append(EventDiscriminator(ev.EventName()).Bytes(), body...))
	return nil
}

// ProgramData returns the decoded payload of a "Program data:" log line.
// Only the first base64 field is returned.
func ProgramData(log string) ([]byte, bool) {
	rest, ok := strings.CutPrefix(log, ProgramDataPrefix)
	if !ok {
		return nil, false
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	data, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return nil, false
	}
	return data, true
}

// DecodeEvent decodes log into ev if it is a "Program data:" line carrying
// an event of ev's type. It reports whether the log matched.
func DecodeEvent(log string, ev Event) (bool, error) {
	data, ok := ProgramData(log)
	if !ok {
		return false, nil
	}
	if !EventDiscriminator(ev.EventName()).Matches(data) {
		return false, nil
	}
	if err := Decode(data[DiscriminatorSize:], ev); err != nil {
		return true, err
	}
	return true, nil
}
