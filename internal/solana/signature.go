package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Lengths of the fixed-size byte types.
const (
	SignatureLength = 64
	HashLength      = 32
)

var (
	// ErrInvalidSignature is returned when a signature does not decode to 64 bytes.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidHash is returned when a hash does not decode to 32 bytes.
	ErrInvalidHash = errors.New("invalid hash")
)

// Signature is an ed25519 transaction signature.
type Signature [SignatureLength]byte

// ParseSignature decodes a base58 signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	decoded, err := base58.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(decoded) != SignatureLength {
		return sig, fmt.Errorf("%w: decoded length %d", ErrInvalidSignature, len(decoded))
	}
	copy(sig[:], decoded)
	return sig, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero reports whether the signature is unset.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	sig, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// Hash is a 32-byte blockhash.
type Hash [HashLength]byte

// ParseHash decodes a base58 hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	decoded, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(decoded) != HashLength {
		return h, fmt.Errorf("%w: decoded length %d", ErrInvalidHash, len(decoded))
	}
	copy(h[:], decoded)
	return h, nil
}

// HashOf returns sha256 over the concatenation of parts.
func HashOf(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
