package ban

import (
	"context"
	"sync"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryScheduleStore backs unit tests and single-node development.
type InMemoryScheduleStore struct {
	mu      sync.RWMutex
	records map[id.UserID]ScheduleRecord

	// FailPut, when non-nil, is returned instead of writing. Saga tests use
	// it to force the last step to fail.
	FailPut error
}

func NewInMemoryScheduleStore() *InMemoryScheduleStore {
	return &InMemoryScheduleStore{records: make(map[id.UserID]ScheduleRecord)}
}

func (s *InMemoryScheduleStore) Put(_ context.Context, rec ScheduleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return s.FailPut
	}
	s.records[rec.UserID] = rec
	return nil
}

func (s *InMemoryScheduleStore) Get(_ context.Context, userID id.UserID) (*ScheduleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemoryScheduleStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, userID)
	return nil
}
