package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"custodia/internal/util/memzero"
)

const (
	// The current supported version of the sealed record format.
	sealFormatVersion = 1
	saltBytes         = 16
)

var (
	// ErrSealBroken is returned when the secret is wrong or a sealed record was
	// modified, truncated or moved to another record name.
	ErrSealBroken = errors.New("sealed record cannot be opened")
)

// ScryptCost holds the scrypt work factors used to derive a record key.
type ScryptCost struct {
	N, R, P int
}

// DefaultScryptCost is the interactive-login cost recommended by the scrypt paper.
var DefaultScryptCost = ScryptCost{N: 1 << 15, R: 8, P: 1}

// blob is the JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// seal derives a key from secret and seals raw, binding it to name.
func seal(secret, name string, raw []byte, cost ScryptCost) ([]byte, error) {
	var salt [saltBytes]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(secret), salt[:], cost.N, cost.R, cost.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the salt-bound key is never reused
	ct := aead.Seal(nil, nonce[:], raw, additionalData(salt[:], name))

	return json.Marshal(blob{
		V:      sealFormatVersion,
		Salt:   salt[:],
		N:      cost.N,
		R:      cost.R,
		P:      cost.P,
		Cipher: ct,
	})
}

// open reverses seal.
func open(secret, name string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, ErrSealBroken
	}
	if bl.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported sealed record version %d", bl.V)
	}
	if len(bl.Salt) != saltBytes {
		return nil, ErrSealBroken
	}

	key, err := scrypt.Key([]byte(secret), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, ErrSealBroken
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, additionalData(bl.Salt, name))
	if err != nil {
		return nil, ErrSealBroken
	}
	return pt, nil
}

func additionalData(salt []byte, name string) []byte {
	ad := make([]byte, 0, len(salt)+len(name))
	ad = append(ad, salt...)
	return append(ad, name...)
}
