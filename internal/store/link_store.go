package store

import (
	"context"
	"encoding/json"

	"custodia/internal/domain"
)

// LinkStore persists the KYC link state as one JSON record.
type LinkStore struct {
	records domain.RecordStore
}

// NewLinkStore returns a LinkStore over records.
func NewLinkStore(records domain.RecordStore) *LinkStore {
	return &LinkStore{records: records}
}

// Load returns the saved link state; ok is false when nothing was saved.
func (s *LinkStore) Load(ctx context.Context) (domain.KYCLinkState, bool, error) {
	v, ok, err := s.records.Get(ctx, domain.RecordKYCLink)
	if err != nil || !ok {
		return domain.KYCLinkState{}, false, err
	}
	var st domain.KYCLinkState
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return domain.KYCLinkState{}, false, err
	}
	return st, true, nil
}

// Save replaces the link state.
func (s *LinkStore) Save(ctx context.Context, st domain.KYCLinkState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.records.Set(ctx, domain.RecordKYCLink, string(b))
}

// Clear removes the link state.
func (s *LinkStore) Clear(ctx context.Context) error {
	return s.records.Delete(ctx, domain.RecordKYCLink)
}

// Compile-time assertion that LinkStore implements domain.LinkStateStore.
var _ domain.LinkStateStore = (*LinkStore)(nil)
