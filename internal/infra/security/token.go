package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Alphabet for MFA codes. Ambiguous glyphs (0/O, 1/I/L) are excluded so codes
// survive being read aloud or retyped.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateAlphanumericCode returns a random short code of the given length
// drawn from the unambiguous alphabet. Bytes outside the largest multiple of
// the alphabet size are rejected and redrawn so every character is equally
// likely.
func GenerateAlphanumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	limit := byte(256 - 256%len(codeAlphabet))
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// HashToken calculates a SHA-256 hash of the provided value. Session rows
// store token hashes, never raw bearer tokens.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
