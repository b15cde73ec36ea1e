package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/appeal"
	"warden/internal/archive"
	"warden/internal/audit"
	"warden/internal/ban"
	"warden/internal/identity"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/moderation"
	"warden/internal/notify"
	"warden/internal/profile"
	"warden/internal/ratelimit"
	id "warden/pkg/domain"
)

type HandlerSuite struct {
	suite.Suite
	server     *httptest.Server
	jwt        *jwttoken.JWTService
	profiles   *profile.InMemoryStore
	contents   *moderation.InMemoryContentStore
	reports    *moderation.InMemoryReportStore
	appeals    *appeal.InMemoryStore
	adminToken string
	userToken  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s.profiles = profile.NewInMemoryStore()
	s.contents = moderation.NewInMemoryContentStore()
	s.reports = moderation.NewInMemoryReportStore()
	s.appeals = appeal.NewInMemoryStore()
	violations := moderation.NewInMemoryViolationStore()
	idp := identity.NewInMemoryProvider()
	notes := notify.NewRecorder()
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), logger, 30*24*time.Hour)

	bans, err := ban.New(s.profiles, idp, ban.NewInMemoryScheduleStore(), auditor, logger,
		ban.WithNotifier(notes),
	)
	s.Require().NoError(err)

	mod, err := moderation.New(violations, s.contents, s.reports, s.profiles, bans, auditor, logger,
		moderation.WithNotifier(notes),
	)
	s.Require().NoError(err)

	appeals, err := appeal.New(s.appeals, bans, s.contents, s.reports, violations, auditor, logger,
		appeal.WithNotifier(notes),
	)
	s.Require().NoError(err)

	archiver := archive.NewReportArchiver(s.reports, archive.NewInMemoryObjectStore(), auditor, logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewInMemoryStore(), 50, time.Hour)

	s.jwt = jwttoken.NewJWTService("test-signing-key", "warden-test")
	handler := NewHandler(bans, mod, appeals, archiver, limiter, logger, []HealthCheck{
		{Name: "self", Check: func(context.Context) error { return nil }},
	})
	s.server = httptest.NewServer(NewRouter(handler, jwttoken.NewValidator(s.jwt), logger))

	s.adminToken, err = s.jwt.GenerateToken("admin-1", true, time.Hour)
	s.Require().NoError(err)
	s.userToken, err = s.jwt.GenerateToken("u-1", false, time.Hour)
	s.Require().NoError(err)

	s.Require().NoError(s.profiles.Create(ctx, &profile.Profile{
		UserID:      "u-1",
		AccountName: "alice",
		CreatedAt:   time.Now().Add(-30 * 24 * time.Hour),
	}))
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) do(method, path, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *HandlerSuite) decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *HandlerSuite) banAlice(duration int, unit string) {
	resp := s.do(http.MethodPost, "/admin/users/u-1/ban", s.adminToken, banRequest{
		Reason: "spam", Duration: duration, Unit: unit,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlerSuite) TestBanEndpoint() {
	resp := s.do(http.MethodPost, "/admin/users/u-1/ban", s.adminToken, banRequest{
		Reason: "spam", Duration: 3, Unit: "days",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body profileResponse
	s.decode(resp, &body)
	s.True(body.IsBanned)
	s.Equal("spam", body.BanReason)
	s.NotNil(body.BanExpiresAt)
	s.Equal(id.UserID("admin-1"), body.BannedBy)
}

func (s *HandlerSuite) TestBanRequiresAdmin() {
	resp := s.do(http.MethodPost, "/admin/users/u-1/ban", "", banRequest{Reason: "spam"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/admin/users/u-1/ban", s.userToken, banRequest{Reason: "spam"})
	s.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlerSuite) TestBanErrorMapping() {
	resp := s.do(http.MethodPost, "/admin/users/nobody/ban", s.adminToken, banRequest{Reason: "spam"})
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	s.banAlice(0, "")
	resp = s.do(http.MethodPost, "/admin/users/u-1/ban", s.adminToken, banRequest{Reason: "again"})
	s.Equal(http.StatusConflict, resp.StatusCode)

	var envelope errorEnvelope
	s.decode(resp, &envelope)
	s.Equal("conflict", envelope.Error)
}

func (s *HandlerSuite) TestBanValidationMapping() {
	resp := s.do(http.MethodPost, "/admin/users/u-1/ban", s.adminToken, banRequest{})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlerSuite) TestUnbanEndpoint() {
	s.banAlice(0, "")
	resp := s.do(http.MethodPost, "/admin/users/u-1/unban", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body profileResponse
	s.decode(resp, &body)
	s.False(body.IsBanned)
}

func (s *HandlerSuite) TestPublicBanStatus() {
	s.banAlice(2, "hours")

	resp := s.do(http.MethodGet, "/bans/alice", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body banStatusResponse
	s.decode(resp, &body)
	s.True(body.Banned)
	s.False(body.Permanent)
	s.NotNil(body.ExpiresAt)
	s.Positive(body.RemainingSeconds)

	resp = s.do(http.MethodGet, "/bans/nobody", "", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlerSuite) TestListBanned() {
	s.banAlice(0, "")
	resp := s.do(http.MethodGet, "/admin/users/banned", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Users []profileResponse `json:"users"`
	}
	s.decode(resp, &body)
	s.Require().Len(body.Users, 1)
	s.Equal(id.UserID("u-1"), body.Users[0].UserID)
}

func (s *HandlerSuite) TestModerationAction() {
	ctx := context.Background()
	s.Require().NoError(s.contents.Put(ctx, &moderation.Content{
		ContentType: "post", ContentID: "p-1", AuthorID: "u-1",
		Status: moderation.StatusActive,
	}))

	resp := s.do(http.MethodPost, "/admin/moderation/actions", s.adminToken, moderationRequest{
		Action: "hide_content", ContentType: "post", ContentID: "p-1", Reason: "off topic",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var out moderation.Outcome
	s.decode(resp, &out)
	s.Equal(moderation.ActionHideContent, out.Action)
	s.Require().NotNil(out.Content)
	s.Equal(moderation.StatusHidden, out.Content.Status)
	s.Require().NotNil(out.Violation)
	s.Equal(moderation.SeverityMedium, out.Violation.Severity)
}

func (s *HandlerSuite) TestAppealLifecycleOverHTTP() {
	s.banAlice(0, "")

	resp := s.do(http.MethodPost, "/appeals", s.userToken, appealSubmitRequest{
		AppealType: "ban", Reason: "I believe this was a mistake",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var submitted appeal.Appeal
	s.decode(resp, &submitted)
	s.Equal(appeal.StatusPending, submitted.Status)

	resp = s.do(http.MethodGet, "/appeals", s.userToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var mine struct {
		Appeals []appeal.Appeal `json:"appeals"`
	}
	s.decode(resp, &mine)
	s.Require().Len(mine.Appeals, 1)

	resp = s.do(http.MethodGet, "/admin/appeals?status=pending", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var pending struct {
		Appeals []appeal.Appeal `json:"appeals"`
	}
	s.decode(resp, &pending)
	s.Require().Len(pending.Appeals, 1)

	resp = s.do(http.MethodPost, "/admin/appeals/"+submitted.ID.String()+"/review", s.adminToken, reviewRequest{
		Decision: "approve",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var reviewed appeal.Appeal
	s.decode(resp, &reviewed)
	s.Equal(appeal.StatusApproved, reviewed.Status)

	// Approval unbanned the user; the public check confirms in the same step.
	resp = s.do(http.MethodGet, "/bans/alice", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var status banStatusResponse
	s.decode(resp, &status)
	s.False(status.Banned)
}

func (s *HandlerSuite) TestDuplicateAppealConflict() {
	s.banAlice(0, "")
	body := appealSubmitRequest{AppealType: "ban", Reason: "I believe this was a mistake"}

	resp := s.do(http.MethodPost, "/appeals", s.userToken, body)
	s.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/appeals", s.userToken, body)
	s.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlerSuite) TestUserDetail() {
	s.banAlice(0, "")
	resp := s.do(http.MethodGet, "/admin/users/u-1", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body userDetailResponse
	s.decode(resp, &body)
	s.True(body.Profile.IsBanned)
	s.NotNil(body.Violations)
	s.NotNil(body.Appeals)
}

func (s *HandlerSuite) TestArchiveReports() {
	ctx := context.Background()
	resolvedAt := time.Now()
	s.Require().NoError(s.reports.Add(ctx, moderation.Report{
		ID: id.NewReportID(), ContentType: "post", ContentID: "p-1",
		ReporterID: "u-2", Reason: "spam", Status: moderation.ReportActionTaken,
		CreatedAt: resolvedAt.Add(-time.Hour), ResolvedAt: &resolvedAt,
	}))

	resp := s.do(http.MethodPost, "/admin/archive/reports", s.adminToken, archiveRequest{Limit: 10})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body map[string]int
	s.decode(resp, &body)
	s.Equal(1, body["archived"])
}

func (s *HandlerSuite) TestHealthz() {
	resp := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminRateLimitOverHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	profiles := profile.NewInMemoryStore()
	for _, uid := range []id.UserID{"u-1", "u-2", "u-3"} {
		if err := profiles.Create(ctx, &profile.Profile{UserID: uid, AccountName: "acct-" + uid.String()}); err != nil {
			t.Fatal(err)
		}
	}

	auditor := audit.NewPublisher(audit.NewInMemoryStore(), logger, time.Hour)
	bans, err := ban.New(profiles, identity.NewInMemoryProvider(), ban.NewInMemoryScheduleStore(), auditor, logger)
	if err != nil {
		t.Fatal(err)
	}
	violations := moderation.NewInMemoryViolationStore()
	contents := moderation.NewInMemoryContentStore()
	reports := moderation.NewInMemoryReportStore()
	mod, err := moderation.New(violations, contents, reports, profiles, bans, auditor, logger)
	if err != nil {
		t.Fatal(err)
	}
	appeals, err := appeal.New(appeal.NewInMemoryStore(), bans, contents, reports, violations, auditor, logger)
	if err != nil {
		t.Fatal(err)
	}
	archiver := archive.NewReportArchiver(reports, archive.NewInMemoryObjectStore(), auditor, logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewInMemoryStore(), 2, time.Hour)

	jwtSvc := jwttoken.NewJWTService("test-signing-key", "warden-test")
	handler := NewHandler(bans, mod, appeals, archiver, limiter, logger, nil)
	server := httptest.NewServer(NewRouter(handler, jwttoken.NewValidator(jwtSvc), logger))
	defer server.Close()

	adminToken, err := jwtSvc.GenerateToken("admin-1", true, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	banUser := func(uid string) int {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(banRequest{Reason: "spam"}); err != nil {
			t.Fatal(err)
		}
		req, err := http.NewRequest(http.MethodPost, server.URL+"/admin/users/"+uid+"/ban", &buf)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+adminToken)
		resp, err := server.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := banUser("u-1"); got != http.StatusOK {
		t.Fatalf("first ban: got %d", got)
	}
	if got := banUser("u-2"); got != http.StatusOK {
		t.Fatalf("second ban: got %d", got)
	}
	if got := banUser("u-3"); got != http.StatusTooManyRequests {
		t.Fatalf("third ban: got %d, want 429", got)
	}
}
