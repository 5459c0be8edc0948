// Package cache persists the current credential list so a restarted
// daemon can seed its pool without waiting for the next key push.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/natefinch/atomic"
)

// ErrCorrupt is returned by Load when the cache file cannot be decoded.
var ErrCorrupt = errors.New("corrupt credential cache")

// File is the on-disk cache format.
type File struct {
	Keys      []string  `json:"keys"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store reads and writes the cache file.
type Store struct {
	path string
	now  func() time.Time
}

// Open returns a Store for name inside stateDir. The name is resolved so
// that it cannot escape stateDir, even through symlinks.
func Open(stateDir, name string) (*Store, error) {
	path, err := securejoin.SecureJoin(stateDir, name)
	if err != nil {
		return nil, fmt.Errorf("invalid cache path: %w", err)
	}
	return &Store{path: path, now: time.Now}, nil
}

// Path returns the resolved cache file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the cached keys. A missing or empty cache yields nil, nil.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorrupt, s.path, err)
	}
	if len(f.Keys) == 0 {
		return nil, nil
	}
	return f.Keys, nil
}

// Save atomically replaces the cache with keys.
func (s *Store) Save(keys []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(File{Keys: keys, UpdatedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return os.Chmod(s.path, 0600)
}

// Remove deletes the cache file.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
