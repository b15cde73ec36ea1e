package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.Require().NoError(s.store.Create(context.Background(), &Profile{
		UserID:      "u-1",
		AccountName: "alice",
		CreatedAt:   time.Now(),
	}))
}

func (s *MemoryStoreSuite) TestGetByAccountName() {
	ctx := context.Background()

	p, err := s.store.GetByAccountName(ctx, "alice")
	s.NoError(err)
	s.Equal("u-1", p.UserID.String())

	_, err = s.store.GetByAccountName(ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestSetBanIsConditional() {
	ctx := context.Background()
	now := time.Now()
	expires := now.Add(24 * time.Hour)
	attrs := BanAttributes{
		Reason:    "spam",
		BannedAt:  now,
		BannedBy:  "admin-1",
		Duration:  1,
		Unit:      UnitDays,
		ExpiresAt: &expires,
	}

	s.NoError(s.store.SetBan(ctx, "u-1", attrs))

	// Second ban on the same user loses the conditional write.
	s.ErrorIs(s.store.SetBan(ctx, "u-1", attrs), sentinel.ErrConflict)
	s.ErrorIs(s.store.SetBan(ctx, "u-missing", attrs), sentinel.ErrNotFound)

	p, err := s.store.Get(ctx, "u-1")
	s.Require().NoError(err)
	s.True(p.IsBanned)
	s.Equal("spam", p.BanReason)
	s.Equal(UnitDays, p.BanDurationUnit)
	s.NotNil(p.BanExpiresAt)
}

func (s *MemoryStoreSuite) TestClearBanRoundTrip() {
	ctx := context.Background()
	now := time.Now()

	// Clearing an unbanned profile is a conflict.
	s.ErrorIs(s.store.ClearBan(ctx, "u-1"), sentinel.ErrConflict)

	s.Require().NoError(s.store.SetBan(ctx, "u-1", BanAttributes{
		Reason:   "harassment",
		BannedAt: now,
		BannedBy: "admin-1",
	}))
	s.NoError(s.store.ClearBan(ctx, "u-1"))

	p, err := s.store.Get(ctx, "u-1")
	s.Require().NoError(err)
	s.False(p.IsBanned)
	s.Empty(p.BanReason)
	s.Nil(p.BannedAt)
	s.Nil(p.BanExpiresAt)
	s.Zero(p.BanDuration)
}

func (s *MemoryStoreSuite) TestIncrementViolationCount() {
	ctx := context.Background()

	n, err := s.store.IncrementViolationCount(ctx, "u-1")
	s.NoError(err)
	s.Equal(1, n)

	n, err = s.store.IncrementViolationCount(ctx, "u-1")
	s.NoError(err)
	s.Equal(2, n)

	_, err = s.store.IncrementViolationCount(ctx, "u-missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListBanned() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, &Profile{UserID: "u-2", AccountName: "bob"}))

	banned, err := s.store.ListBanned(ctx)
	s.NoError(err)
	s.Empty(banned)

	s.Require().NoError(s.store.SetBan(ctx, "u-2", BanAttributes{Reason: "spam", BannedAt: time.Now(), BannedBy: "admin-1"}))

	banned, err = s.store.ListBanned(ctx)
	s.NoError(err)
	s.Len(banned, 1)
	s.Equal("u-2", banned[0].UserID.String())
}

func (s *MemoryStoreSuite) TestGetReturnsCopy() {
	ctx := context.Background()
	p, err := s.store.Get(ctx, "u-1")
	s.Require().NoError(err)
	p.IsBanned = true

	again, err := s.store.Get(ctx, "u-1")
	s.Require().NoError(err)
	s.False(again.IsBanned)
}

func TestBanExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	permanent := &Profile{IsBanned: true}
	if permanent.BanExpired(now) {
		t.Fatal("permanent ban must never expire")
	}

	lapsed := &Profile{IsBanned: true, BanExpiresAt: &past}
	if !lapsed.BanExpired(now) {
		t.Fatal("past expiry must report expired")
	}

	// Inclusive boundary: expiry at exactly now counts as expired.
	boundary := &Profile{IsBanned: true, BanExpiresAt: &now}
	if !boundary.BanExpired(now) {
		t.Fatal("expiry at the exact instant must report expired")
	}

	active := &Profile{IsBanned: true, BanExpiresAt: &future}
	if active.BanExpired(now) {
		t.Fatal("future expiry must not report expired")
	}
}
