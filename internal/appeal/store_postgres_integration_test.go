//go:build integration

package appeal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/appeal"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *appeal.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = appeal.NewPostgresStore(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "appeals"))
}

func (s *PostgresStoreSuite) newBanAppeal(userID id.UserID, at time.Time) *appeal.Appeal {
	return &appeal.Appeal{
		ID:     id.NewAppealID(),
		UserID: userID,
		Type:   appeal.TypeBan,
		Reason: "this ban was a mistake",
		Status: appeal.StatusPending,
		Snapshot: appeal.ViolationSnapshot{
			Reason:   "spam",
			Severity: "high",
		},
		SubmittedAt: at,
		RetainUntil: at.Add(90 * 24 * time.Hour),
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	a := s.newBanAppeal("u-1", now)
	s.Require().NoError(s.store.Create(ctx, a))

	got, err := s.store.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.UserID, got.UserID)
	s.Equal(appeal.StatusPending, got.Status)
	s.Equal("spam", got.Snapshot.Reason, "snapshot must survive the JSONB round trip")
	s.True(got.RetainUntil.Equal(a.RetainUntil))

	_, err = s.store.Get(ctx, id.NewAppealID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSinglePendingEnforcedByIndex() {
	ctx := context.Background()
	now := time.Now().UTC()

	first := s.newBanAppeal("u-1", now)
	s.Require().NoError(s.store.Create(ctx, first))

	duplicate := s.newBanAppeal("u-1", now.Add(time.Minute))
	s.ErrorIs(s.store.Create(ctx, duplicate), sentinel.ErrConflict)

	// A resolved appeal frees the slot for a fresh pending one.
	reviewedAt := now.Add(time.Hour)
	first.Status = appeal.StatusRejected
	first.ReviewedBy = "admin-1"
	first.ReviewedAt = &reviewedAt
	first.ReviewNotes = "ban stands"
	s.Require().NoError(s.store.Update(ctx, first))

	s.Require().NoError(s.store.Create(ctx, s.newBanAppeal("u-1", now.Add(2*time.Hour))))
}

func (s *PostgresStoreSuite) TestUpdateMissing() {
	a := s.newBanAppeal("u-1", time.Now().UTC())
	s.ErrorIs(s.store.Update(context.Background(), a), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByStatusAndUser() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	pending := s.newBanAppeal("u-1", now)
	s.Require().NoError(s.store.Create(ctx, pending))

	otherUser := s.newBanAppeal("u-2", now.Add(time.Second))
	s.Require().NoError(s.store.Create(ctx, otherUser))

	byStatus, err := s.store.ListByStatus(ctx, appeal.StatusPending, 10)
	s.Require().NoError(err)
	s.Require().Len(byStatus, 2)
	s.Equal(pending.ID, byStatus[0].ID, "oldest submission first")

	byUser, err := s.store.ListByUser(ctx, "u-1")
	s.Require().NoError(err)
	s.Require().Len(byUser, 1)
	s.Equal(pending.ID, byUser[0].ID)
}

func (s *PostgresStoreSuite) TestRetentionSourceSkipsPending() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	reviewedAt := now.Add(-time.Hour)

	// Pending and past retention: still must not be reaped.
	stuck := s.newBanAppeal("u-1", now.Add(-100*24*time.Hour))
	stuck.RetainUntil = now.Add(-time.Hour)
	s.Require().NoError(s.store.Create(ctx, stuck))

	done := s.newBanAppeal("u-2", now.Add(-100*24*time.Hour))
	done.Status = appeal.StatusRejected
	done.ReviewedBy = "admin-1"
	done.ReviewedAt = &reviewedAt
	done.ReviewNotes = "ban stands"
	done.RetainUntil = now.Add(-time.Hour)
	s.Require().NoError(s.store.Create(ctx, done))

	s.Equal("appeal", s.store.Entity())

	records, err := s.store.ListExpired(ctx, now, 100)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(done.ID.String(), records[0].Key)

	s.Require().NoError(s.store.DeleteByKey(ctx, records[0].Key))
	_, err = s.store.Get(ctx, done.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Get(ctx, stuck.ID)
	s.Require().NoError(err, "pending appeals outlive their retention window")
}
