// Package settings persists daemon settings that must survive a restart.
// Today that is only the DF mode flag.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asdine/storm/v3"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket  = "settings"
	keyMode = "df_mode"

	openTimeout = time.Second
)

// Store is a storm-backed settings store.
type Store struct {
	db *storm.DB
}

// Open opens (or creates) the store at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := storm.Open(path, storm.BoltOptions(0o600, &bolt.Options{Timeout: openTimeout}))
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// SaveMode records the DF mode flag.
func (s *Store) SaveMode(on bool) error {
	if err := s.db.Set(bucket, keyMode, on); err != nil {
		return fmt.Errorf("save df mode: %w", err)
	}
	return nil
}

// LoadMode returns the recorded DF mode flag. found is false when nothing
// has been saved yet.
func (s *Store) LoadMode() (on, found bool, err error) {
	err = s.db.Get(bucket, keyMode, &on)
	if errors.Is(err, storm.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("load df mode: %w", err)
	}
	return on, true, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
