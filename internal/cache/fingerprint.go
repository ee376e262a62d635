package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is a SHA-256 digest of file content, used as the cache key.
// Identity is content-based: two files with identical bytes share one
// fingerprint regardless of path.
type Fingerprint [sha256.Size]byte

// FingerprintOf computes the fingerprint for the given content.
// Deterministic and valid for any byte sequence, including empty input.
func FingerprintOf(content []byte) Fingerprint {
	return sha256.Sum256(content)
}

// String returns the hex encoding of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, enough for log output.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}
