package store

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"custodia/internal/domain"
)

const leveldbDir = "records.db"

// LevelDBStore keeps records in an embedded LevelDB under <dir>/records.db.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (or creates) the database rooted at dir.
func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(filepath.Join(dir, leveldbDir), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(ctx context.Context, key domain.RecordKey) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	b, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Set writes with fsync so a lockout written just before a kill survives it.
func (s *LevelDBStore) Set(ctx context.Context, key domain.RecordKey, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}
	return s.db.Put([]byte(key), []byte(value), &opt.WriteOptions{Sync: true})
}

func (s *LevelDBStore) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Delete([]byte(key), &opt.WriteOptions{Sync: true})
}

// Close releases the database lock.
func (s *LevelDBStore) Close() error { return s.db.Close() }

// Compile-time assertion that LevelDBStore implements domain.RecordStore.
var _ domain.RecordStore = (*LevelDBStore)(nil)
