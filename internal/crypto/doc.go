// Package crypto exposes the minimal primitives used by custodia.
//
// Contents
//
//   - P-256 key generation from caller-supplied entropy (GenerateP256)
//   - Hex key parsing (ParsePrivateKey, ParsePublicKey, PublicKeyFromPrivate)
//   - Low-S ECDSA signing and verification over a digest (SignDigest, VerifyDigest)
//   - DER encoding of (r, s) with x/crypto/cryptobyte (EncodeDER, ParseDER)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Keys travel as hex strings: the compressed SEC1 point for the public key and
// the zero-padded 32-byte scalar for the private key. Scalar buffers are wiped
// after use; the big.Int copies inside ecdsa.PrivateKey cannot be.
package crypto
