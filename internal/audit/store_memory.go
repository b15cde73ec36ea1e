package audit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"warden/internal/retention"
)

// InMemoryStore holds log entries for tests and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Actor.String() == actor {
			out = append(out, e)
		}
	}
	return lastN(out, limit), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Entry{}, s.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return lastN(out, limit), nil
}

func (s *InMemoryStore) CountSince(_ context.Context, actor string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.entries {
		if e.Actor.String() == actor && !e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// Entity implements retention.Source.
func (s *InMemoryStore) Entity() string { return "admin_action_log" }

// ListExpired implements retention.Source.
func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]retention.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []retention.Record
	for _, e := range s.entries {
		if len(out) >= limit {
			break
		}
		if !e.ExpiresAt.After(now) {
			payload, err := json.Marshal(e)
			if err != nil {
				return nil, err
			}
			out = append(out, retention.Record{Key: e.ID.String(), Payload: payload})
		}
	}
	return out, nil
}

// DeleteByKey implements retention.Source.
func (s *InMemoryStore) DeleteByKey(_ context.Context, key string) error {
	entryID, err := uuid.Parse(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == entryID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func lastN(entries []Entry, limit int) []Entry {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}
	return entries[len(entries)-limit:]
}
