package solana

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrTooManyAccounts is returned when a message references more than 256 keys.
	ErrTooManyAccounts = errors.New("too many account keys")

	// ErrMalformedMessage is returned when message bytes cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")
)

// MessageHeader counts the signer and readonly sections of AccountKeys.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references accounts by index into Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

type keyEntry struct {
	key      PublicKey
	signer   bool
	writable bool
	payer    bool
	order    int
}

func (e keyEntry) rank() int {
	switch {
	case e.payer:
		return 0
	case e.signer && e.writable:
		return 1
	case e.signer:
		return 2
	case e.writable:
		return 3
	default:
		return 4
	}
}

// NewMessage compiles instructions into a message. The payer comes first,
// followed by writable signers, readonly signers, writable non-signers and
// readonly non-signers. Repeated keys are merged with their privileges OR-ed.
func NewMessage(instructions []Instruction, payer PublicKey, blockhash Hash) (*Message, error) {
	entries := map[PublicKey]*keyEntry{
		payer: {key: payer, signer: true, writable: true, payer: true},
	}
	add := func(pk PublicKey, signer, writable bool) {
		e, ok := entries[pk]
		if !ok {
			e = &keyEntry{key: pk, order: len(entries)}
			entries[pk] = e
		}
		e.signer = e.signer || signer
		e.writable = e.writable || writable
	}
	for _, ix := range instructions {
		for _, am := range ix.Accounts {
			add(am.PublicKey, am.IsSigner, am.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}
	if len(entries) > 256 {
		return nil, ErrTooManyAccounts
	}

	ordered := make([]keyEntry, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, *e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		ri, rj := ordered[i].rank(), ordered[j].rank()
		if ri != rj {
			return ri < rj
		}
		return ordered[i].order < ordered[j].order
	})

	msg := &Message{RecentBlockhash: blockhash}
	index := make(map[PublicKey]uint8, len(ordered))
	for i, e := range ordered {
		index[e.key] = uint8(i)
		msg.AccountKeys = append(msg.AccountKeys, e.key)
		switch {
		case e.signer:
			msg.Header.NumRequiredSignatures++
			if !e.writable {
				msg.Header.NumReadonlySignedAccounts++
			}
		case !e.writable:
			msg.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Accounts:       make([]uint8, len(ix.Accounts)),
			Data:           append([]byte(nil), ix.Data...),
		}
		for i, am := range ix.Accounts {
			ci.Accounts[i] = index[am.PublicKey]
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg, nil
}

// IsSigner reports whether the key at index i must sign.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the key at index i is writable.
func (m *Message) IsWritable(i int) bool {
	nSigned := int(m.Header.NumRequiredSignatures)
	if i < nSigned {
		return i < nSigned-int(m.Header.NumReadonlySignedAccounts)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsignedAccounts)
}

// Signers returns the keys that must sign, fee payer first.
func (m *Message) Signers() []PublicKey {
	n := int(m.Header.NumRequiredSignatures)
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	return m.AccountKeys[:n]
}

// FeePayer returns the first account key.
func (m *Message) FeePayer() PublicKey {
	if len(m.AccountKeys) == 0 {
		return PublicKey{}
	}
	return m.AccountKeys[0]
}

// Sanitize checks structural consistency of the header and instruction indexes.
func (m *Message) Sanitize() error {
	nKeys := len(m.AccountKeys)
	h := m.Header
	if h.NumRequiredSignatures == 0 {
		return fmt.Errorf("%w: no fee payer", ErrMalformedMessage)
	}
	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > nKeys {
		return fmt.Errorf("%w: header exceeds account keys", ErrMalformedMessage)
	}
	if h.NumReadonlySignedAccounts >= h.NumRequiredSignatures {
		return fmt.Errorf("%w: fee payer must be writable", ErrMalformedMessage)
	}
	seen := make(map[PublicKey]struct{}, nKeys)
	for _, k := range m.AccountKeys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: duplicate account key %s", ErrMalformedMessage, k)
		}
		seen[k] = struct{}{}
	}
	for i, ix := range m.Instructions {
		if int(ix.ProgramIDIndex) >= nKeys || ix.ProgramIDIndex == 0 {
			return fmt.Errorf("%w: instruction %d program index", ErrMalformedMessage, i)
		}
		for _, a := range ix.Accounts {
			if int(a) >= nKeys {
				return fmt.Errorf("%w: instruction %d account index", ErrMalformedMessage, i)
			}
		}
	}
	return nil
}

// Serialize encodes the message in the legacy wire format.
func (m *Message) Serialize() []byte {
	b := []byte{
		m.Header.NumRequiredSignatures,
		m.Header.NumReadonlySignedAccounts,
		m.Header.NumReadonlyUnsignedAccounts,
	}
	b = appendShortVec(b, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		b = append(b, k[:]...)
	}
	b = append(b, m.RecentBlockhash[:]...)
	b = appendShortVec(b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b = append(b, ix.ProgramIDIndex)
		b = appendShortVec(b, len(ix.Accounts))
		b = append(b, ix.Accounts...)
		b = appendShortVec(b, len(ix.Data))
		b = append(b, ix.Data...)
	}
	return b
}

// DecodeMessage parses a legacy message and returns the bytes consumed.
func DecodeMessage(b []byte) (*Message, int, error) {
	r := reader{buf: b}
	m := &Message{}
	hdr := r.next(3)
	if r.err != nil {
		return nil, 0, r.err
	}
	m.Header = MessageHeader{hdr[0], hdr[1], hdr[2]}

	nKeys := r.shortVec()
	for i := 0; i < nKeys && r.err == nil; i++ {
		var pk PublicKey
		copy(pk[:], r.next(PublicKeyLength))
		m.AccountKeys = append(m.AccountKeys, pk)
	}
	copy(m.RecentBlockhash[:], r.next(HashLength))

	nIx := r.shortVec()
	for i := 0; i < nIx && r.err == nil; i++ {
		var ci CompiledInstruction
		if p := r.next(1); p != nil {
			ci.ProgramIDIndex = p[0]
		}
		ci.Accounts = append([]uint8(nil), r.next(r.shortVec())...)
		ci.Data = append([]byte(nil), r.next(r.shortVec())...)
		m.Instructions = append(m.Instructions, ci)
	}
	if r.err != nil {
		return nil, 0, r.err
	}
	return m, r.pos, nil
}

// Instruction expands the compiled instruction at index i back into keys.
func (m *Message) Instruction(i int) Instruction {
	ci := m.Instructions[i]
	ix := Instruction{
		ProgramID: m.AccountKeys[ci.ProgramIDIndex],
		Accounts:  make([]AccountMeta, len(ci.Accounts)),
		Data:      ci.Data,
	}
	for j, idx := range ci.Accounts {
		ix.Accounts[j] = AccountMeta{
			PublicKey:  m.AccountKeys[idx],
			IsSigner:   m.IsSigner(int(idx)),
			IsWritable: m.IsWritable(int(idx)),
		}
	}
	return ix
}

type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("%w: unexpected end of input", ErrMalformedMessage)
		return nil
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) shortVec() int {
	if r.err != nil {
		return 0
	}
	v, n, err := readShortVec(r.buf[r.pos:])
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		return 0
	}
	r.pos += n
	return v
}
