// Package storage provides the durable key-value surface the shell core
// persists into. The core uses a single fixed key for the serialized
// conversation collection; the backend is swappable behind the KV interface.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// KV is a durable key-value store. Read reports absence via the bool
// rather than an error so a cold start is not an error path.
type KV interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, data []byte) error
}

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FileKV stores each key as a file under a root directory. Writes go
// through a temp file and rename so readers never observe a torn write.
type FileKV struct {
	root string
}

// NewFileKV creates a file-backed store rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileKV{root: dir}, nil
}

// Read returns the stored value for key, or ok=false if it was never written.
func (s *FileKV) Read(key string) ([]byte, bool, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return data, true, nil
}

// Write stores the value for key, replacing any previous value.
func (s *FileKV) Write(key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit key %s: %w", key, err)
	}
	return nil
}

func (s *FileKV) keyPath(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(s.root, key+".json"), nil
}

// Memory is an in-memory KV for tests and ephemeral runs.
type Memory struct {
	values map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Read(key string) ([]byte, bool, error) {
	data, ok := m.values[key]
	return data, ok, nil
}

func (m *Memory) Write(key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.values[key] = cp
	return nil
}
