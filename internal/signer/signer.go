// Package signer produces server-verifiable stamps over opaque challenge strings.
//
// A stamp is base64url(JSON{publicKey, scheme, signature}) without padding, where
// signature is the hex DER encoding of a low-S ECDSA P-256 signature over
// SHA-256(payload).
package signer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"custodia/internal/crypto"
	"custodia/internal/domain"
	"custodia/internal/logging"
	"custodia/internal/metrics"
)

// Scheme identifies the stamp format to the remote.
const Scheme = "SIGNATURE_SCHEME_TK_API_P256"

var (
	ErrInvalidStamp     = errors.New("invalid stamp")
	ErrStampKeyMismatch = errors.New("stamp public key does not match")
	ErrStampSignature   = errors.New("stamp signature does not verify")
)

// Params is one signing request.
type Params struct {
	Payload    string
	PublicKey  string
	PrivateKey string
}

// Signer signs payloads with a caller-supplied keypair.
type Signer struct {
	entropy io.Reader
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New returns a Signer drawing ECDSA nonces' extra entropy from entropy.
func New(entropy io.Reader, logger *slog.Logger, m *metrics.Metrics) *Signer {
	return &Signer{entropy: entropy, log: logging.OrDiscard(logger), metrics: m}
}

// Sign returns the encoded stamp for p.
//
// If any field of p is empty, Sign returns ok=false and a nil error so the
// caller can abort. Every cryptographic failure is reported as
// domain.ErrSignatureFailure with no key material or partial output attached.
func (s *Signer) Sign(ctx context.Context, p Params) (stamp string, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if p.Payload == "" || p.PublicKey == "" || p.PrivateKey == "" {
		s.metrics.Signature("skipped")
		return "", false, nil
	}
	stamp, err = s.stamp(p)
	if err != nil {
		s.metrics.Signature("error")
		s.log.Warn("payload signing failed", "public_key", p.PublicKey)
		return "", false, domain.ErrSignatureFailure
	}
	s.metrics.Signature("ok")
	return stamp, true, nil
}

func (s *Signer) stamp(p Params) (string, error) {
	priv, err := crypto.ParsePrivateKey(p.PrivateKey)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(p.Payload))
	der, err := crypto.SignDigest(s.entropy, priv, digest[:])
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(domain.SignedStamp{
		PublicKey: p.PublicKey,
		Scheme:    Scheme,
		Signature: hex.EncodeToString(der),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeStamp parses an encoded stamp without verifying it.
func DecodeStamp(encoded string) (domain.SignedStamp, error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return domain.SignedStamp{}, ErrInvalidStamp
	}
	var st domain.SignedStamp
	if err := json.Unmarshal(b, &st); err != nil {
		return domain.SignedStamp{}, ErrInvalidStamp
	}
	if st.Scheme != Scheme || st.PublicKey == "" || st.Signature == "" {
		return domain.SignedStamp{}, ErrInvalidStamp
	}
	return st, nil
}

// VerifyStamp checks that encoded was produced over payload by the key
// registered as expectedPublicKey.
func VerifyStamp(encoded, payload, expectedPublicKey string) error {
	st, err := DecodeStamp(encoded)
	if err != nil {
		return err
	}
	if !strings.EqualFold(st.PublicKey, expectedPublicKey) {
		return ErrStampKeyMismatch
	}
	pub, err := crypto.ParsePublicKey(st.PublicKey)
	if err != nil {
		return ErrInvalidStamp
	}
	sig, err := hex.DecodeString(st.Signature)
	if err != nil {
		return ErrInvalidStamp
	}
	digest := sha256.Sum256([]byte(payload))
	if !crypto.VerifyDigest(pub, digest[:], sig) {
		return ErrStampSignature
	}
	return nil
}
