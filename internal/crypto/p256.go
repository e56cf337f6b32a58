package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"io"
	"math/big"

	"custodia/internal/domain"
	"custodia/internal/util/memzero"
)

const (
	// EntropyBytes is drawn per key: the 32-byte scalar plus 64 extra bits so
	// that reducing modulo n-1 has negligible bias.
	EntropyBytes = 40

	PrivateKeyBytes          = 32
	CompressedPublicKeyBytes = 33
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidPublicKey  = errors.New("invalid public key")
)

var p256 = elliptic.P256()

// GenerateP256 derives a P-256 keypair from EntropyBytes read from entropy.
// The private scalar is d = (c mod (n-1)) + 1 where c is the entropy as a
// big-endian integer.
func GenerateP256(entropy io.Reader) (domain.KeyPair, error) {
	seed := make([]byte, EntropyBytes)
	defer memzero.Zero(seed)
	if _, err := io.ReadFull(entropy, seed); err != nil {
		return domain.KeyPair{}, err
	}

	nMinusOne := new(big.Int).Sub(p256.Params().N, big.NewInt(1))
	d := new(big.Int).SetBytes(seed)
	d.Mod(d, nMinusOne)
	d.Add(d, big.NewInt(1))

	scalar := d.FillBytes(make([]byte, PrivateKeyBytes))
	defer memzero.Zero(scalar)

	pub, err := compressedPublic(scalar)
	if err != nil {
		return domain.KeyPair{}, err
	}
	return domain.KeyPair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(scalar),
	}, nil
}

// ParsePrivateKey decodes a 64-hex-char scalar into an ECDSA key.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	scalar, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(scalar) != PrivateKeyBytes {
		return nil, ErrInvalidPrivateKey
	}
	defer memzero.Zero(scalar)

	sk, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	raw := sk.PublicKey().Bytes()
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: p256,
			X:     new(big.Int).SetBytes(raw[1:33]),
			Y:     new(big.Int).SetBytes(raw[33:65]),
		},
		D: new(big.Int).SetBytes(scalar),
	}, nil
}

// ParsePublicKey decodes a compressed (33 byte) or uncompressed (65 byte) SEC1 point.
func ParsePublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	var x, y *big.Int
	switch len(b) {
	case CompressedPublicKeyBytes:
		x, y = elliptic.UnmarshalCompressed(p256, b)
	case 1 + 2*PrivateKeyBytes:
		pk, err := ecdh.P256().NewPublicKey(b)
		if err != nil {
			return nil, ErrInvalidPublicKey
		}
		raw := pk.Bytes()
		x, y = new(big.Int).SetBytes(raw[1:33]), new(big.Int).SetBytes(raw[33:65])
	}
	if x == nil {
		return nil, ErrInvalidPublicKey
	}
	return &ecdsa.PublicKey{Curve: p256, X: x, Y: y}, nil
}

// PublicKeyFromPrivate returns the compressed public key hex for a private scalar.
func PublicKeyFromPrivate(privateKeyHex string) (string, error) {
	scalar, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(scalar) != PrivateKeyBytes {
		return "", ErrInvalidPrivateKey
	}
	defer memzero.Zero(scalar)
	pub, err := compressedPublic(scalar)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pub), nil
}

// SignDigest signs digest with priv and returns a low-S DER signature.
func SignDigest(entropy io.Reader, priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(entropy, priv, digest)
	if err != nil {
		return nil, err
	}
	return EncodeDER(r, normalizeS(s))
}

// VerifyDigest checks a DER signature over digest. High-S signatures are rejected.
func VerifyDigest(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	r, s, err := ParseDER(sig)
	if err != nil {
		return false
	}
	if s.Cmp(halfOrder) > 0 {
		return false
	}
	return ecdsa.Verify(pub, digest, r, s)
}

func compressedPublic(scalar []byte) ([]byte, error) {
	sk, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	raw := sk.PublicKey().Bytes() // 0x04 || X || Y
	out := make([]byte, CompressedPublicKeyBytes)
	out[0] = 0x02 | raw[64]&1
	copy(out[1:], raw[1:33])
	return out, nil
}
