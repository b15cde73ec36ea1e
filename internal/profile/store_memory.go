package profile

import (
	"context"
	"sort"
	"sync"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore holds profiles in a map. It backs unit tests and single-node
// development; the Redis store is the production implementation.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*Profile
	byName   map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[id.UserID]*Profile),
		byName:   make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) GetByAccountName(_ context.Context, name string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.profiles[userID]
	return &cp, nil
}

func (s *InMemoryStore) Create(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.UserID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	s.profiles[p.UserID] = &cp
	s.byName[p.AccountName] = p.UserID
	return nil
}

func (s *InMemoryStore) SetBan(_ context.Context, userID id.UserID, attrs BanAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.IsBanned {
		return sentinel.ErrConflict
	}
	bannedAt := attrs.BannedAt
	p.IsBanned = true
	p.BanReason = attrs.Reason
	p.BannedAt = &bannedAt
	p.BannedBy = attrs.BannedBy
	p.BanDuration = attrs.Duration
	p.BanDurationUnit = attrs.Unit
	p.BanExpiresAt = attrs.ExpiresAt
	return nil
}

func (s *InMemoryStore) ClearBan(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !p.IsBanned {
		return sentinel.ErrConflict
	}
	p.IsBanned = false
	p.BanReason = ""
	p.BannedAt = nil
	p.BannedBy = ""
	p.BanDuration = 0
	p.BanDurationUnit = ""
	p.BanExpiresAt = nil
	return nil
}

func (s *InMemoryStore) IncrementViolationCount(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	p.ViolationCount++
	return p.ViolationCount, nil
}

func (s *InMemoryStore) ListBanned(_ context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Profile
	for _, p := range s.profiles {
		if p.IsBanned {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
