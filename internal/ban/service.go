package ban

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"warden/internal/audit"
	"warden/internal/identity"
	"warden/internal/notify"
	"warden/internal/platform/metrics"
	"warden/internal/profile"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/saga"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// Service owns the ban/unban state machine. A ban touches two systems that
// must agree (the profile store and the identity provider) plus the schedule
// store, executed sequentially so ordered compensation is possible.
type Service struct {
	profiles profile.Store
	idp      identity.Provider
	schedule ScheduleStore
	notifier notify.Notifier
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier sets the notification collaborator.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func New(
	profiles profile.Store,
	idp identity.Provider,
	schedule ScheduleStore,
	auditor *audit.Publisher,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if idp == nil {
		return nil, errors.New("identity provider is required")
	}
	if schedule == nil {
		return nil, errors.New("schedule store is required")
	}

	svc := &Service{
		profiles: profiles,
		idp:      idp,
		schedule: schedule,
		auditor:  auditor,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// BanUser executes the ban saga. Duration 0 means permanent; anything else is
// converted through the unit into an expiry instant.
func (s *Service) BanUser(ctx context.Context, req Request) (*profile.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	unit := profile.UnitDays
	if req.Duration > 0 {
		var err error
		if unit, err = profile.ParseDurationUnit(req.Unit); err != nil {
			return nil, err
		}
	}

	target, err := s.profiles.Get(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store lookup failed")
	}

	now := requestcontext.Now(ctx)

	// A lapsed temporary ban that no read path has reaped yet does not
	// block a new ban: reap it first, then proceed.
	if target.BanExpired(now) {
		if _, err := s.UnbanUser(ctx, req.TargetID, SourceAuto); err != nil {
			return nil, err
		}
	} else if target.IsBanned {
		return nil, dErrors.New(dErrors.CodeConflict, "user is already banned")
	}

	var expiresAt *time.Time
	if req.Duration > 0 {
		t := now.Add(unit.Span(req.Duration))
		expiresAt = &t
	}

	attrs := profile.BanAttributes{
		Reason:    req.Reason,
		BannedAt:  now,
		BannedBy:  req.AdminID,
		Duration:  req.Duration,
		Unit:      unit,
		ExpiresAt: expiresAt,
	}

	comp := &saga.Stack{}

	// Step 1: conditional profile write. Losing the write means a
	// concurrent ban got there first.
	if err := s.step("profile_set_ban", func() error {
		return s.profiles.SetBan(ctx, req.TargetID, attrs)
	}); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "user is already banned")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store ban write failed")
	}
	comp.Push("profile_set_ban", func(ctx context.Context) error {
		return s.profiles.ClearBan(ctx, req.TargetID)
	})

	// Step 2: identity provider, addressed by account name.
	if err := s.step("identity_disable", func() error {
		return s.idp.DisableAccount(ctx, target.AccountName)
	}); err != nil {
		s.compensate(ctx, comp, "identity_disable", err)
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "identity provider disable failed")
	}
	comp.Push("identity_disable", func(ctx context.Context) error {
		return s.idp.EnableAccount(ctx, target.AccountName)
	})

	// Step 3: schedule record, temporary bans only.
	if expiresAt != nil {
		if err := s.step("schedule_put", func() error {
			return s.schedule.Put(ctx, ScheduleRecord{UserID: req.TargetID, ExpiresAt: *expiresAt})
		}); err != nil {
			s.compensate(ctx, comp, "schedule_put", err)
			return nil, dErrors.Wrap(err, dErrors.CodeExternal, "ban schedule write failed")
		}
	}
	comp.Discard()

	s.emitAudit(ctx, audit.Entry{
		Actor:  req.AdminID,
		Action: audit.ActionBanUser,
		Target: req.TargetID.String(),
		Reason: req.Reason,
		Metadata: map[string]string{
			"duration": strconv.Itoa(req.Duration),
			"unit":     string(unit),
		},
	})
	s.countOp("ban", string(SourceManual), "ok")
	s.notifyBanned(ctx, req.TargetID, req.Reason, expiresAt)

	return s.profiles.Get(ctx, req.TargetID)
}

// UnbanUser reverses a ban. The identity account is re-enabled before any
// local state changes: an identity failure leaves the ban fully intact and
// the call safe to retry. Absence of the schedule record is tolerated: a
// permanent ban never had one.
func (s *Service) UnbanUser(ctx context.Context, targetID id.UserID, source Source) (*profile.Profile, error) {
	if targetID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "target user id required")
	}

	target, err := s.profiles.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store lookup failed")
	}
	if !target.IsBanned {
		return nil, dErrors.New(dErrors.CodeConflict, "user is not banned")
	}

	if err := s.idp.EnableAccount(ctx, target.AccountName); err != nil {
		s.countOp("unban", string(source), "error")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "identity provider enable failed")
	}

	if err := s.profiles.ClearBan(ctx, targetID); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent unban won; the account enable was idempotent.
			return nil, dErrors.New(dErrors.CodeConflict, "user is not banned")
		}
		s.countOp("unban", string(source), "error")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store unban write failed")
	}

	if err := s.schedule.Delete(ctx, targetID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "ban schedule delete failed",
			"user_id", targetID.String(),
			"error", err,
		)
	}

	// The audit actor is whoever asked for this unban, not whoever issued
	// the ban. Lazy-expiry reaps run as the system regardless of caller.
	actor := requestcontext.UserID(ctx)
	if source == SourceAuto || actor.IsZero() {
		actor = "system"
	}
	s.emitAudit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionUnbanUser,
		Target:   targetID.String(),
		Metadata: map[string]string{"source": string(source)},
	})
	s.countOp("unban", string(source), "ok")

	if s.notifier != nil && source == SourceManual {
		_ = s.notifier.Send(ctx, notify.Notification{
			UserID:  targetID,
			Type:    notify.TypeUnbanned,
			Title:   "Your account has been reinstated",
			Message: "Your account is active again.",
		})
	}

	return s.profiles.Get(ctx, targetID)
}

// Refresh applies the lazy expiry rule to an already-loaded profile: if the
// ban has lapsed, the auto-unban runs before the caller answers. Every
// ban-status read path goes through here.
func (s *Service) Refresh(ctx context.Context, p *profile.Profile) (*profile.Profile, error) {
	if !p.BanExpired(requestcontext.Now(ctx)) {
		return p, nil
	}
	refreshed, err := s.UnbanUser(ctx, p.UserID, SourceAuto)
	if err != nil {
		// A concurrent reader may have reaped the ban already.
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return s.getFresh(ctx, p.UserID)
		}
		return nil, err
	}
	return refreshed, nil
}

// Status resolves the current ban state by user ID, applying lazy expiry.
func (s *Service) Status(ctx context.Context, userID id.UserID) (*profile.Profile, error) {
	p, err := s.getFresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Refresh(ctx, p)
}

// StatusByAccountName resolves ban state for the public status endpoint.
func (s *Service) StatusByAccountName(ctx context.Context, name string) (*profile.Profile, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "account name required")
	}
	p, err := s.profiles.GetByAccountName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store lookup failed")
	}
	return s.Refresh(ctx, p)
}

// ListBanned returns currently banned profiles, reaping lapsed bans as a
// side effect of the read.
func (s *Service) ListBanned(ctx context.Context) ([]*profile.Profile, error) {
	banned, err := s.profiles.ListBanned(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store list failed")
	}
	out := make([]*profile.Profile, 0, len(banned))
	for _, p := range banned {
		refreshed, err := s.Refresh(ctx, p)
		if err != nil {
			return nil, err
		}
		if refreshed.IsBanned {
			out = append(out, refreshed)
		}
	}
	return out, nil
}

func (s *Service) getFresh(ctx context.Context, userID id.UserID) (*profile.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "profile store lookup failed")
	}
	return p, nil
}

func (s *Service) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.SagaStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return err
}

// compensate unwinds completed steps in reverse. Secondary failures are
// logged, never returned: the caller gets the error that aborted the saga.
func (s *Service) compensate(ctx context.Context, comp *saga.Stack, failedStep string, cause error) {
	s.logger.ErrorContext(ctx, "ban saga step failed, compensating",
		"failed_step", failedStep,
		"completed_steps", comp.Len(),
		"error", cause,
	)
	if s.metrics != nil {
		s.metrics.BanCompensations.Inc()
	}
	for _, failure := range comp.Unwind(ctx) {
		s.logger.ErrorContext(ctx, "ban saga compensation failed",
			"step", failure.Step,
			"error", failure.Err,
		)
	}
	s.countOp("ban", string(SourceManual), "error")
}

func (s *Service) emitAudit(ctx context.Context, entry audit.Entry) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, entry)
	}
}

func (s *Service) countOp(op, source, outcome string) {
	if s.metrics != nil {
		s.metrics.BansExecuted.WithLabelValues(op, source, outcome).Inc()
	}
}

func (s *Service) notifyBanned(ctx context.Context, userID id.UserID, reason string, expiresAt *time.Time) {
	if s.notifier == nil {
		return
	}
	message := "Your account has been permanently suspended."
	metadata := map[string]string{"reason": reason}
	if expiresAt != nil {
		message = fmt.Sprintf("Your account is suspended until %s.", expiresAt.UTC().Format(time.RFC3339))
		metadata["banExpiresAt"] = expiresAt.UTC().Format(time.RFC3339)
	}
	_ = s.notifier.Send(ctx, notify.Notification{
		UserID:   userID,
		Type:     notify.TypeBanned,
		Title:    "Account suspended",
		Message:  message,
		Metadata: metadata,
	})
}
