package archive

import (
	"context"
	"sort"
	"sync"

	"warden/pkg/platform/sentinel"
)

// InMemoryObjectStore backs unit tests.
type InMemoryObjectStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// FailPut, when non-nil, is returned instead of writing.
	FailPut error
}

func NewInMemoryObjectStore() *InMemoryObjectStore {
	return &InMemoryObjectStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte{}, data...), nil
}

func (s *InMemoryObjectStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return s.FailPut
	}
	s.blobs[key] = append([]byte{}, data...)
	return nil
}

func (s *InMemoryObjectStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
