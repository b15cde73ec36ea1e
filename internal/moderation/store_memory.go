package moderation

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

func contentKey(contentType, contentID string) string {
	return contentType + "/" + contentID
}

// InMemoryViolationStore backs unit tests and single-node development.
type InMemoryViolationStore struct {
	mu         sync.RWMutex
	violations []Violation
}

func NewInMemoryViolationStore() *InMemoryViolationStore {
	return &InMemoryViolationStore{}
}

func (s *InMemoryViolationStore) Add(_ context.Context, v Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	return nil
}

func (s *InMemoryViolationStore) ListByUser(_ context.Context, userID id.UserID) ([]Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Violation
	for _, v := range s.violations {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryViolationStore) CountByContent(_ context.Context, contentType, contentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, v := range s.violations {
		if v.ContentType == contentType && v.ContentID == contentID {
			count++
		}
	}
	return count, nil
}

// InMemoryContentStore backs unit tests and single-node development. It also
// serves as the retention source for hidden content whose appeal window has
// closed unexercised.
type InMemoryContentStore struct {
	mu       sync.RWMutex
	contents map[string]*Content
}

func NewInMemoryContentStore() *InMemoryContentStore {
	return &InMemoryContentStore{contents: make(map[string]*Content)}
}

func (s *InMemoryContentStore) Get(_ context.Context, contentType, contentID string) (*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contents[contentKey(contentType, contentID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryContentStore) Put(_ context.Context, c *Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contents[contentKey(c.ContentType, c.ContentID)] = &cp
	return nil
}

// Entity implements retention.Source.
func (s *InMemoryContentStore) Entity() string { return "content" }

// ListExpired implements retention.Source: hidden content past its purge
// instant.
func (s *InMemoryContentStore) ListExpired(_ context.Context, now time.Time, limit int) ([]retention.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []retention.Record
	for key, c := range s.contents {
		if len(out) >= limit {
			break
		}
		if c.Status == StatusHidden && c.PurgeAt != nil && !now.Before(*c.PurgeAt) {
			payload, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			out = append(out, retention.Record{Key: key, Payload: payload})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeleteByKey implements retention.Source.
func (s *InMemoryContentStore) DeleteByKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contents, key)
	return nil
}

// InMemoryReportStore backs unit tests and single-node development.
type InMemoryReportStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*Report
}

func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{reports: make(map[id.ReportID]*Report)}
}

func (s *InMemoryReportStore) Add(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.reports[r.ID] = &cp
	return nil
}

func (s *InMemoryReportStore) ListByContent(_ context.Context, contentType, contentID string) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Report
	for _, r := range s.reports {
		if r.ContentType == contentType && r.ContentID == contentID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryReportStore) CloseOpen(_ context.Context, contentType, contentID string, status ReportStatus, resolvedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := 0
	for _, r := range s.reports {
		if r.ContentType == contentType && r.ContentID == contentID && r.Status == ReportPending {
			r.Status = status
			at := resolvedAt
			r.ResolvedAt = &at
			closed++
		}
	}
	return closed, nil
}

func (s *InMemoryReportStore) ListResolved(_ context.Context, limit int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Report
	for _, r := range s.reports {
		if r.Status != ReportPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryReportStore) Delete(_ context.Context, reportID id.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[reportID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.reports, reportID)
	return nil
}
