// Package anchor implements the Anchor framework's client and program
// conventions: 8-byte discriminators, Borsh encoding, event logs and error
// codes.
package anchor

import (
	"crypto/sha256"
	"encoding/hex"
)

// DiscriminatorSize is the length of every discriminator prefix.
const DiscriminatorSize = 8

// Discriminator identifies an instruction, account type or event.
type Discriminator [DiscriminatorSize]byte

func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the discriminator as a slice.
func (d Discriminator) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

// Matches reports whether data starts with d.
func (d Discriminator) Matches(data []byte) bool {
	return len(data) >= DiscriminatorSize && Discriminator(data[:DiscriminatorSize]) == d
}

func discriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// InstructionDiscriminator is sha256("global:<name>")[:8] for a snake_case
// instruction name.
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global", name)
}

// AccountDiscriminator is sha256("account:<Name>")[:8].
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account", name)
}

// EventDiscriminator is sha256("event:<Name>")[:8].
func EventDiscriminator(name string) Discriminator {
	return discriminator("event", name)
}
