package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(signature|log_index|kind)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(signature string, logIndex int, kind string) string {
	data := fmt.Sprintf("%s|%d|%s", signature, logIndex, kind)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
