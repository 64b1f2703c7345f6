// Package checksum fingerprints content and build outputs so unchanged files
// can be skipped.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data hashes to sum. An empty sum never matches.
func Matches(data []byte, sum string) bool {
	if sum == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Sum(data)), []byte(sum)) == 1
}
