// Package hasher commits a consent document to a fixed-width digest.
package hasher

import (
	"crypto/sha256"
	"strings"

	"pharmatrace/internal/consent/models"
)

// Hash returns SHA-256 over the UTF-8 encoding of document. Invalid UTF-8 runs
// are replaced with U+FFFD first, so the digest is defined for every Go string.
// The empty document is valid input.
func Hash(document string) models.Digest {
	return models.Digest(sha256.Sum256(canonical(document)))
}

// canonical returns the exact bytes that Hash digests.
func canonical(document string) []byte {
	return []byte(strings.ToValidUTF8(document, "�"))
}
