// Package passcode implements the device passcode used by the CLI as its
// platform authentication factor.
//
// The passcode is never stored. Its record holds a scrypt verifier:
// a random salt, the work factors and the derived hash.
package passcode

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"custodia/internal/domain"
	"custodia/internal/util/memzero"
)

const (
	verifierVersion = 1
	saltBytes       = 16
	hashBytes       = 32
	// MinLength is the shortest accepted passcode.
	MinLength = 4
)

var (
	ErrTooShort    = fmt.Errorf("passcode must be at least %d characters", MinLength)
	ErrNotSet      = errors.New("no device passcode set")
	ErrBadVerifier = errors.New("device passcode record is corrupt")
)

// Cost holds scrypt work factors.
type Cost struct {
	N, R, P int
}

// DefaultCost matches the sealed store's interactive cost.
var DefaultCost = Cost{N: 1 << 15, R: 8, P: 1}

type verifier struct {
	V    int    `json:"v"`
	Salt []byte `json:"salt"`
	N    int    `json:"scrypt_N"`
	R    int    `json:"scrypt_r"`
	P    int    `json:"scrypt_p"`
	Hash []byte `json:"hash"`
}

// Verifier stores and checks the device passcode.
type Verifier struct {
	records domain.RecordStore
	cost    Cost
}

func NewVerifier(records domain.RecordStore, cost Cost) *Verifier {
	return &Verifier{records: records, cost: cost}
}

// Exists reports whether a passcode has been set.
func (v *Verifier) Exists(ctx context.Context) (bool, error) {
	_, ok, err := v.records.Get(ctx, domain.RecordDevicePasscode)
	return ok, err
}

// Set replaces the device passcode.
func (v *Verifier) Set(ctx context.Context, passcode string) error {
	if len([]rune(strings.TrimSpace(passcode))) < MinLength {
		return ErrTooShort
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	hash, err := scrypt.Key([]byte(passcode), salt, v.cost.N, v.cost.R, v.cost.P, hashBytes)
	if err != nil {
		return err
	}
	b, err := json.Marshal(verifier{
		V:    verifierVersion,
		Salt: salt,
		N:    v.cost.N,
		R:    v.cost.R,
		P:    v.cost.P,
		Hash: hash,
	})
	if err != nil {
		return err
	}
	return v.records.Set(ctx, domain.RecordDevicePasscode, string(b))
}

// Verify reports whether passcode matches the stored verifier.
func (v *Verifier) Verify(ctx context.Context, passcode string) (bool, error) {
	raw, ok, err := v.records.Get(ctx, domain.RecordDevicePasscode)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotSet
	}
	var rec verifier
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.V != verifierVersion || len(rec.Hash) != hashBytes {
		return false, ErrBadVerifier
	}
	got, err := scrypt.Key([]byte(passcode), rec.Salt, rec.N, rec.R, rec.P, hashBytes)
	if err != nil {
		return false, ErrBadVerifier
	}
	defer memzero.Zero(got)
	return subtle.ConstantTimeCompare(got, rec.Hash) == 1, nil
}
