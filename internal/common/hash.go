package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests the input to lowercase hex. Used to derive redis keys
// for webhook replay suppression and idempotency, keeping raw callback
// bodies and client-chosen keys out of the keyspace.
func Sha256Hex(input string) string {
	digest := sha256.Sum256([]byte(input))
	return hex.EncodeToString(digest[:])
}
