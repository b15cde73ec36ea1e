package moderation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/audit"
	"warden/internal/ban"
	"warden/internal/identity"
	"warden/internal/notify"
	"warden/internal/profile"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	violations *InMemoryViolationStore
	contents   *InMemoryContentStore
	reports    *InMemoryReportStore
	profiles   *profile.InMemoryStore
	idp        *identity.InMemoryProvider
	notes      *notify.Recorder
	auditLog   *audit.InMemoryStore
	svc        *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.violations = NewInMemoryViolationStore()
	s.contents = NewInMemoryContentStore()
	s.reports = NewInMemoryReportStore()
	s.profiles = profile.NewInMemoryStore()
	s.idp = identity.NewInMemoryProvider()
	s.notes = notify.NewRecorder()
	s.auditLog = audit.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditor := audit.NewPublisher(s.auditLog, logger, 30*24*time.Hour)

	bans, err := ban.New(s.profiles, s.idp, ban.NewInMemoryScheduleStore(), auditor, logger,
		ban.WithNotifier(s.notes),
	)
	s.Require().NoError(err)

	s.svc, err = New(s.violations, s.contents, s.reports, s.profiles, bans, auditor, logger,
		WithNotifier(s.notes),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) seedContent(contentID string, author id.UserID) {
	s.Require().NoError(s.profiles.Create(s.ctx, &profile.Profile{
		UserID:      author,
		AccountName: "acct-" + author.String(),
	}))
	s.Require().NoError(s.contents.Put(s.ctx, &Content{
		ContentType: "post",
		ContentID:   contentID,
		AuthorID:    author,
		Status:      StatusActive,
	}))
}

func (s *ServiceSuite) seedReports(contentID string, n int) {
	for i := 0; i < n; i++ {
		s.Require().NoError(s.reports.Add(s.ctx, Report{
			ID:          id.NewReportID(),
			ContentType: "post",
			ContentID:   contentID,
			ReporterID:  "reporter",
			Reason:      "offensive",
			Status:      ReportPending,
			CreatedAt:   s.now.Add(-time.Hour),
		}))
	}
}

func (s *ServiceSuite) request(action Action, contentID string) Request {
	return Request{
		AdminID:     "admin-1",
		Action:      action,
		ContentType: "post",
		ContentID:   contentID,
		Reason:      "community guidelines",
	}
}

func (s *ServiceSuite) TestDismiss() {
	s.seedContent("p-1", "u-1")
	s.seedReports("p-1", 2)

	out, err := s.svc.TakeAction(s.ctx, s.request(ActionDismiss, "p-1"))
	s.Require().NoError(err)

	s.Equal(2, out.ReportsClosed)
	s.Nil(out.Violation, "dismiss writes no violation")

	reports, err := s.reports.ListByContent(s.ctx, "post", "p-1")
	s.Require().NoError(err)
	for _, r := range reports {
		s.Equal(ReportActionTaken, r.Status)
	}

	c, err := s.contents.Get(s.ctx, "post", "p-1")
	s.Require().NoError(err)
	s.Equal(StatusActive, c.Status, "dismiss leaves content unchanged")

	p, err := s.profiles.Get(s.ctx, "u-1")
	s.Require().NoError(err)
	s.Zero(p.ViolationCount)
}

func (s *ServiceSuite) TestWarn() {
	s.seedContent("p-1", "u-1")
	s.seedReports("p-1", 1)

	out, err := s.svc.TakeAction(s.ctx, s.request(ActionWarn, "p-1"))
	s.Require().NoError(err)

	s.Require().NotNil(out.Violation)
	s.Equal(SeverityLow, out.Violation.Severity)

	c, err := s.contents.Get(s.ctx, "post", "p-1")
	s.Require().NoError(err)
	s.Equal(StatusActive, c.Status, "warn leaves content visible")
	s.Equal(ActionWarn, c.LastAction)
	s.Equal(id.UserID("admin-1"), c.LastActionBy)

	p, err := s.profiles.Get(s.ctx, "u-1")
	s.Require().NoError(err)
	s.Equal(1, p.ViolationCount)

	n, ok := s.notes.LastOfType(notify.TypeWarning)
	s.Require().True(ok)
	s.Equal(id.UserID("u-1"), n.UserID)
	s.Equal(out.Violation.ID.String(), n.Metadata["violationId"])
}

func (s *ServiceSuite) TestHideContent() {
	s.seedContent("p-1", "u-1")
	s.seedReports("p-1", 3)

	out, err := s.svc.TakeAction(s.ctx, s.request(ActionHideContent, "p-1"))
	s.Require().NoError(err)

	s.Require().NotNil(out.Violation)
	s.Equal(SeverityMedium, out.Violation.Severity)
	s.Equal(3, out.ReportsClosed)

	c, err := s.contents.Get(s.ctx, "post", "p-1")
	s.Require().NoError(err)
	s.Equal(StatusHidden, c.Status)
	s.True(c.CanAppeal)
	s.Require().NotNil(c.HiddenAt)
	s.Require().NotNil(c.AppealDeadline)
	s.Equal(c.HiddenAt.Add(7*24*time.Hour), *c.AppealDeadline)
	s.Require().NotNil(c.PurgeAt)
	s.Equal(*c.AppealDeadline, *c.PurgeAt)

	n, ok := s.notes.LastOfType(notify.TypeContentHidden)
	s.Require().True(ok)
	s.Equal(c.AppealDeadline.UTC().Format(time.RFC3339), n.Metadata["appealDeadline"])
}

func (s *ServiceSuite) TestBanUserAction() {
	s.seedContent("p-1", "u-1")
	s.seedReports("p-1", 2)

	req := s.request(ActionBanUser, "p-1")
	req.BanDuration = 3
	req.BanUnit = "days"
	out, err := s.svc.TakeAction(s.ctx, req)
	s.Require().NoError(err)

	s.Require().NotNil(out.Violation)
	s.Equal(SeverityHigh, out.Violation.Severity)

	c, err := s.contents.Get(s.ctx, "post", "p-1")
	s.Require().NoError(err)
	s.Equal(StatusHidden, c.Status)
	s.False(c.CanAppeal, "ban hide is contested through the ban appeal")
	s.Contains(c.HiddenReason, "due to ban")

	p, err := s.profiles.Get(s.ctx, "u-1")
	s.Require().NoError(err)
	s.True(p.IsBanned)
	s.Require().NotNil(p.BanExpiresAt)
	s.Equal(s.now.Add(3*24*time.Hour), *p.BanExpiresAt)
	s.Equal(1, p.ViolationCount)

	reports, err := s.reports.ListByContent(s.ctx, "post", "p-1")
	s.Require().NoError(err)
	for _, r := range reports {
		s.Equal(ReportActionTaken, r.Status)
	}

	_, ok := s.notes.LastOfType(notify.TypeBanned)
	s.True(ok)
}

func (s *ServiceSuite) TestViolationWrittenBeforeBanFailure() {
	s.seedContent("p-1", "u-1")
	// Ban the author first so the delegated ban fails with a conflict.
	req := s.request(ActionBanUser, "p-1")
	_, err := s.svc.TakeAction(s.ctx, req)
	s.Require().NoError(err)

	s.Require().NoError(s.contents.Put(s.ctx, &Content{
		ContentType: "post", ContentID: "p-2", AuthorID: "u-1", Status: StatusActive,
	}))
	_, err = s.svc.TakeAction(s.ctx, s.request(ActionBanUser, "p-2"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	violations, err := s.violations.ListByUser(s.ctx, "u-1")
	s.Require().NoError(err)
	s.Len(violations, 2, "evidence survives the failed ban")
}

func (s *ServiceSuite) TestUnknownContent() {
	_, err := s.svc.TakeAction(s.ctx, s.request(ActionWarn, "nope"))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestValidation() {
	cases := []struct {
		name string
		req  Request
	}{
		{"unknown action", Request{AdminID: "a", Action: "nuke", ContentType: "post", ContentID: "p", Reason: "r"}},
		{"missing content", Request{AdminID: "a", Action: ActionWarn, Reason: "r"}},
		{"missing reason", Request{AdminID: "a", Action: ActionWarn, ContentType: "post", ContentID: "p"}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.TakeAction(s.ctx, tc.req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestDismissNeedsNoReason() {
	s.seedContent("p-1", "u-1")
	req := Request{AdminID: "admin-1", Action: ActionDismiss, ContentType: "post", ContentID: "p-1"}
	_, err := s.svc.TakeAction(s.ctx, req)
	s.NoError(err)
}

func (s *ServiceSuite) TestAuditEntries() {
	s.seedContent("p-1", "u-1")
	_, err := s.svc.TakeAction(s.ctx, s.request(ActionHideContent, "p-1"))
	s.Require().NoError(err)

	entries, err := s.auditLog.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionModeration, entries[0].Action)
	s.Equal("post/p-1", entries[0].Target)
	s.Equal("hide_content", entries[0].Metadata["action"])
}
