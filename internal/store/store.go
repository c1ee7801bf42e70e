// Package store provides snapshot persistence for policy state.
//
// Two disciplines coexist: FileStore rewrites one file wholesale per save,
// LogStore appends one self-contained snapshot line per save and reads back
// only the last line. Both guarantee that state after restart equals the
// last durable write. MemStore is the in-memory fake for tests.
package store

// #region imports
import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// #endregion imports

// #region interface

// SnapshotStore persists opaque snapshot bytes for a single policy instance.
// Load returns (nil, nil) when no snapshot exists yet.
type SnapshotStore interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// #endregion interface

// #region file-store

// FileStore persists the snapshot as one file, rewritten wholesale on save.
type FileStore struct {
	path string
}

// NewFileStore creates a full-overwrite store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the whole snapshot file. Missing file is a cold start, not an error.
func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return data, nil
}

// Save rewrites the snapshot via temp file + rename so a crash mid-write
// never leaves a truncated snapshot behind.
func (s *FileStore) Save(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// #endregion file-store

// #region log-store

// LogStore appends one snapshot line per save. Only the last line is
// authoritative; earlier lines are history.
type LogStore struct {
	path string
}

// NewLogStore creates an append-only snapshot log at path.
func NewLogStore(path string) *LogStore {
	return &LogStore{path: path}
}

// Load returns the last non-empty line of the log, or (nil, nil) if the log
// does not exist or holds no complete line.
func (s *LogStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot log %s: %w", s.path, err)
	}
	lines := bytes.Split(data, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 {
			return line, nil
		}
	}
	return nil, nil
}

// Save appends data as one line.
func (s *LogStore) Save(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return f.Sync()
}

// #endregion log-store

// #region mem-store

// MemStore is an in-memory SnapshotStore for tests.
type MemStore struct {
	mu   sync.Mutex
	data []byte
	// Saves counts Save calls, so tests can assert persistence cadence.
	Saves int
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns the last saved snapshot.
func (s *MemStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

// Save replaces the stored snapshot.
func (s *MemStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make([]byte, len(data))
	copy(s.data, data)
	s.Saves++
	return nil
}

// #endregion mem-store
