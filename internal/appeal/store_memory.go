package appeal

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"warden/internal/retention"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-node development. It also serves
// as the retention source for appeals past their retention window.
type InMemoryStore struct {
	mu      sync.RWMutex
	appeals map[id.AppealID]*Appeal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{appeals: make(map[id.AppealID]*Appeal)}
}

func (s *InMemoryStore) Create(_ context.Context, a *Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appeals {
		if existing.Status == StatusPending &&
			existing.UserID == a.UserID &&
			existing.Type == a.Type &&
			existing.ContentType == a.ContentType &&
			existing.ContentID == a.ContentID {
			return sentinel.ErrConflict
		}
	}
	cp := *a
	s.appeals[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, appealID id.AppealID) (*Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appeals[appealID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, a *Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appeals[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *a
	s.appeals[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Appeal
	for _, a := range s.appeals {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Appeal
	for _, a := range s.appeals {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// Entity implements retention.Source.
func (s *InMemoryStore) Entity() string { return "appeal" }

// ListExpired implements retention.Source. Pending appeals are never reaped,
// whatever their age: an unreviewed appeal must stay visible to admins.
func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]retention.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []retention.Record
	for _, a := range s.appeals {
		if len(out) >= limit {
			break
		}
		if a.Status != StatusPending && !now.Before(a.RetainUntil) {
			payload, err := json.Marshal(a)
			if err != nil {
				return nil, err
			}
			out = append(out, retention.Record{Key: a.ID.String(), Payload: payload})
		}
	}
	return out, nil
}

// DeleteByKey implements retention.Source.
func (s *InMemoryStore) DeleteByKey(_ context.Context, key string) error {
	appealID, err := id.ParseAppealID(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.appeals, appealID)
	return nil
}
