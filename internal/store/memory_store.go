package store

import (
	"context"
	"sync"

	"custodia/internal/domain"
)

// MemoryStore keeps records in process memory. Reusing one instance across
// components simulates a process restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[domain.RecordKey]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.RecordKey]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key domain.RecordKey) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key domain.RecordKey, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Compile-time assertion that MemoryStore implements domain.RecordStore.
var _ domain.RecordStore = (*MemoryStore)(nil)
