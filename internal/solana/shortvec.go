package solana

import (
	"errors"
	"fmt"
)

// ErrShortVec is returned for malformed compact-u16 lengths.
var ErrShortVec = errors.New("invalid compact-u16 length")

// appendShortVec appends n in compact-u16 form (7 bits per byte, high bit continues).
func appendShortVec(b []byte, n int) []byte {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

// readShortVec decodes a compact-u16 and returns the value and bytes consumed.
func readShortVec(b []byte) (int, int, error) {
	var v int
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("%w: truncated", ErrShortVec)
		}
		elem := int(b[i])
		v |= (elem & 0x7f) << (7 * i)
		if elem&0x80 == 0 {
			if i > 0 && elem == 0 {
				return 0, 0, fmt.Errorf("%w: alias", ErrShortVec)
			}
			if v > 0xffff {
				return 0, 0, fmt.Errorf("%w: overflow", ErrShortVec)
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: too long", ErrShortVec)
}
