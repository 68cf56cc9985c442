// Package memory stores captures in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/openhire/jobradar/internal/blob"
)

// Store keeps captures in a map behind a mutex.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New builds an empty store.
func New() *Store {
	return &Store{data: map[string][]byte{}}
}

// PutObject records the capture and returns a memory:// URI.
func (s *Store) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read capture: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), content...)
	return "memory://" + path, nil
}

// GetObject returns a stored capture.
func (s *Store) GetObject(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.data[path]
	if !ok {
		return nil, blob.ErrObjectNotFound
	}
	return append([]byte(nil), content...), nil
}

// Get returns a stored capture, for test assertions.
func (s *Store) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.data[path]
	return content, ok
}
