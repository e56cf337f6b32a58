package store

import (
	"context"
	"encoding/base64"
	"strings"

	"custodia/internal/domain"
)

// SealedStore encrypts every record before handing it to the inner store.
// Values are stored as base64 of the sealed JSON blob, so any string backend works.
type SealedStore struct {
	inner  domain.RecordStore
	secret string
	cost   ScryptCost
}

// NewSealedStore wraps inner using DefaultScryptCost.
func NewSealedStore(inner domain.RecordStore, secret string) (*SealedStore, error) {
	return NewSealedStoreWithCost(inner, secret, DefaultScryptCost)
}

// NewSealedStoreWithCost wraps inner with explicit scrypt parameters.
func NewSealedStoreWithCost(inner domain.RecordStore, secret string, cost ScryptCost) (*SealedStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, domain.ErrStorageSecretRequired
	}
	return &SealedStore{inner: inner, secret: secret, cost: cost}, nil
}

func (s *SealedStore) Get(ctx context.Context, key domain.RecordKey) (string, bool, error) {
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return "", false, ErrSealBroken
	}
	pt, err := open(s.secret, key.String(), b)
	if err != nil {
		return "", false, err
	}
	return string(pt), true, nil
}

func (s *SealedStore) Set(ctx context.Context, key domain.RecordKey, value string) error {
	b, err := seal(s.secret, key.String(), []byte(value), s.cost)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(b))
}

func (s *SealedStore) Delete(ctx context.Context, key domain.RecordKey) error {
	return s.inner.Delete(ctx, key)
}

// Lock forwards to the inner store's lock. Stores without one need no
// cross-process coordination.
func (s *SealedStore) Lock(ctx context.Context) (func(), error) {
	if l, ok := s.inner.(domain.RecordLocker); ok {
		return l.Lock(ctx)
	}
	return func() {}, nil
}

// Compile-time assertions for SealedStore.
var (
	_ domain.RecordStore  = (*SealedStore)(nil)
	_ domain.RecordLocker = (*SealedStore)(nil)
)
