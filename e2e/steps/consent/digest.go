package consent

import (
	"crypto/sha256"
	"encoding/hex"
)

func sha256Hex(document string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:])
}
