package util

import (
	"crypto/rand"
	"encoding/hex"
)

// idBytes of entropy per identifier; hex-encoded this yields 24 characters,
// short enough for log lines and redis keys while still collision-safe for
// job, batch and correlation ids.
const idBytes = 12

// NewID returns a random hex identifier.
func NewID() string {
	b := make([]byte, idBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
