package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// FingerprintHex fingerprints a hex-encoded public key; invalid hex hashes the text.
func FingerprintHex(pubHex string) string {
	b, err := hex.DecodeString(pubHex)
	if err != nil {
		b = []byte(pubHex)
	}
	return Fingerprint(b)
}
