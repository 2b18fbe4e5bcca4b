package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// FileStore persists each key as a single file inside a state directory.
// Writes go through an atomic rename so a crash mid-write never leaves a
// half-written value behind.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the state directory (private to the current user) and
// returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Read returns the bytes stored under key. Missing files, unreadable files,
// and invalid keys all report ok=false.
func (s *FileStore) Read(key string) ([]byte, bool) {
	if !validKey(key) {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Write stores value under key, replacing any previous value atomically.
func (s *FileStore) Write(key string, value []byte) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, key)
	if err := atomic.WriteFile(path, bytes.NewReader(value)); err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Deleting a missing key is a no-op.
func (s *FileStore) Delete(key string) {
	if !validKey(key) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = os.Remove(filepath.Join(s.dir, key))
}
