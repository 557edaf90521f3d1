package download

import (
	"crypto/sha256"
	"encoding/hex"
)

// checksum returns the hex-encoded SHA-256 of b.
func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
