package models

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ChecksumBytes computes the comparison token for a payload: hex-encoded
// BLAKE2b-256. Two copies with equal tokens are byte-identical, so sync
// decisions can compare tokens instead of transferring payloads.
func ChecksumBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches the given comparison token.
func VerifyChecksum(data []byte, token string) bool {
	return ChecksumBytes(data) == token
}
