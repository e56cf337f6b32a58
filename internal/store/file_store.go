package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"custodia/internal/domain"
)

const (
	recordsDir = "records"
	lockName   = "records.lock"
)

// FileStore persists each record as its own 0600 file under <dir>/records.
type FileStore struct {
	dir  string
	lock string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir, creating the records directory.
func NewFileStore(dir string) (*FileStore, error) {
	root := filepath.Join(dir, recordsDir)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: root, lock: filepath.Join(dir, lockName)}, nil
}

// Get reads a record; ok is false when it does not exist.
func (s *FileStore) Get(ctx context.Context, key domain.RecordKey) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if err := validKey(key); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok, err := readFile(s.path(key))
	if err != nil || !ok {
		return "", false, err
	}
	return string(b), true, nil
}

// Set replaces a record atomically.
func (s *FileStore) Set(ctx context.Context, key domain.RecordKey, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFile(s.path(key), []byte(value), 0o600)
}

// Delete removes a record; deleting a missing record is not an error.
func (s *FileStore) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.path(key))
}

// Lock takes an advisory lock shared by every FileStore rooted at the same
// directory, in this process or another.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	return lockFile(ctx, s.lock)
}

func (s *FileStore) path(key domain.RecordKey) string {
	return filepath.Join(s.dir, key.String())
}

// Compile-time assertions for FileStore.
var (
	_ domain.RecordStore  = (*FileStore)(nil)
	_ domain.RecordLocker = (*FileStore)(nil)
)
