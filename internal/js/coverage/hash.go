package coverage

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSourceName returns the deterministic hash used as the runtime
// namespace key for a source identifier. The hex form is safe inside a
// single-quoted JavaScript string literal regardless of what the
// identifier itself contains.
func HashSourceName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}
