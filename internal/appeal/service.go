package appeal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/audit"
	"warden/internal/ban"
	"warden/internal/moderation"
	"warden/internal/notify"
	"warden/internal/platform/metrics"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// Service runs the appeal workflow: pending is the only state an appeal can
// leave, and it leaves exactly once (approved, rejected, or auto_resolved).
type Service struct {
	store      Store
	bans       *ban.Service
	contents   moderation.ContentStore
	reports    moderation.ReportStore
	violations moderation.ViolationStore
	notifier   notify.Notifier
	auditor    *audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	retention  time.Duration
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

// WithRetention overrides how long resolved appeals stay in the hot store.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

const defaultRetention = 90 * 24 * time.Hour

func New(
	store Store,
	bans *ban.Service,
	contents moderation.ContentStore,
	reports moderation.ReportStore,
	violations moderation.ViolationStore,
	auditor *audit.Publisher,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("appeal store is required")
	}
	if bans == nil {
		return nil, errors.New("ban service is required")
	}
	if contents == nil || reports == nil || violations == nil {
		return nil, errors.New("moderation stores are required")
	}

	svc := &Service{
		store:      store,
		bans:       bans,
		contents:   contents,
		reports:    reports,
		violations: violations,
		auditor:    auditor,
		logger:     logger,
		retention:  defaultRetention,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit files a new appeal after checking the contested state still holds.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Appeal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	a := &Appeal{
		ID:          id.NewAppealID(),
		UserID:      req.UserID,
		Type:        req.Type,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
		Status:      StatusPending,
		SubmittedAt: now,
		RetainUntil: now.Add(s.retention),
	}

	switch req.Type {
	case TypeBan:
		snapshot, err := s.banSnapshot(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		a.Snapshot = snapshot
	case TypeContent:
		snapshot, err := s.contentSnapshot(ctx, req, now)
		if err != nil {
			return nil, err
		}
		a.Snapshot = snapshot
	}

	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a pending appeal already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store write failed")
	}

	if a.Type == TypeContent {
		if err := s.suspendPurge(ctx, a.ContentType, a.ContentID); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.AppealsSubmitted.WithLabelValues(string(req.Type)).Inc()
	}
	s.emitAudit(ctx, audit.Entry{
		Actor:  req.UserID,
		Action: audit.ActionAppealSubmitted,
		Target: a.ID.String(),
		Reason: req.Reason,
		Metadata: map[string]string{
			"type":       string(req.Type),
			"content_id": req.ContentID,
		},
	})
	s.notify(ctx, req.UserID, notify.TypeAppealReceived,
		"Appeal received",
		"Your appeal was received and will be reviewed by a moderator.",
		map[string]string{"appealId": a.ID.String()},
	)
	return a, nil
}

// banSnapshot verifies the user is currently banned (lazy expiry applies
// first) and freezes the ban context.
func (s *Service) banSnapshot(ctx context.Context, userID id.UserID) (ViolationSnapshot, error) {
	p, err := s.bans.Status(ctx, userID)
	if err != nil {
		return ViolationSnapshot{}, err
	}
	if !p.IsBanned {
		return ViolationSnapshot{}, dErrors.New(dErrors.CodeConflict, "user is not banned")
	}

	snapshot := ViolationSnapshot{Reason: p.BanReason}
	violations, err := s.violations.ListByUser(ctx, userID)
	if err != nil {
		return ViolationSnapshot{}, dErrors.Wrap(err, dErrors.CodeExternal, "violation lookup failed")
	}
	if len(violations) > 0 {
		latest := violations[len(violations)-1]
		snapshot.Severity = string(latest.Severity)
		snapshot.ViolationID = latest.ID.String()
		count, err := s.reports.ListByContent(ctx, latest.ContentType, latest.ContentID)
		if err != nil {
			return ViolationSnapshot{}, dErrors.Wrap(err, dErrors.CodeExternal, "report lookup failed")
		}
		snapshot.ReportCount = len(count)
	}
	return snapshot, nil
}

// contentSnapshot verifies the content is hidden, appealable and inside the
// grace window (deadline inclusive), and freezes the hide context.
func (s *Service) contentSnapshot(ctx context.Context, req SubmitRequest, now time.Time) (ViolationSnapshot, error) {
	c, err := s.contents.Get(ctx, req.ContentType, req.ContentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ViolationSnapshot{}, dErrors.New(dErrors.CodeNotFound, "content not found")
		}
		return ViolationSnapshot{}, dErrors.Wrap(err, dErrors.CodeExternal, "content store lookup failed")
	}
	if c.Status != moderation.StatusHidden || !c.CanAppeal {
		return ViolationSnapshot{}, dErrors.New(dErrors.CodeConflict, "content is not open to appeal")
	}
	if c.AppealDeadline != nil && now.After(*c.AppealDeadline) {
		return ViolationSnapshot{}, dErrors.New(dErrors.CodeConflict, "appeal deadline has passed")
	}
	if c.AuthorID != req.UserID {
		return ViolationSnapshot{}, dErrors.New(dErrors.CodeForbidden, "only the author may appeal")
	}

	reports, err := s.reports.ListByContent(ctx, req.ContentType, req.ContentID)
	if err != nil {
		return ViolationSnapshot{}, dErrors.Wrap(err, dErrors.CodeExternal, "report lookup failed")
	}
	return ViolationSnapshot{
		Reason:      c.HiddenReason,
		ReportCount: len(reports),
	}, nil
}

// suspendPurge stops the retention clock on content that now carries a
// pending appeal: the sweeper must never delete content an admin may still
// restore. The clock is re-armed when the appeal is rejected.
func (s *Service) suspendPurge(ctx context.Context, contentType, contentID string) error {
	c, err := s.contents.Get(ctx, contentType, contentID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "content store lookup failed")
	}
	if c.PurgeAt == nil {
		return nil
	}
	c.PurgeAt = nil
	if err := s.contents.Put(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "content purge deferral failed")
	}
	return nil
}

// resumePurge re-arms the retention clock after a rejected content appeal.
// The content is purge-eligible immediately: its original window closed while
// the appeal was pending.
func (s *Service) resumePurge(ctx context.Context, a *Appeal, now time.Time) {
	c, err := s.contents.Get(ctx, a.ContentType, a.ContentID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "content purge re-arm failed",
				"content_id", a.ContentID,
				"error", err,
			)
		}
		return
	}
	if c.Status != moderation.StatusHidden || c.PurgeAt != nil {
		return
	}
	c.PurgeAt = &now
	if err := s.contents.Put(ctx, c); err != nil {
		s.logger.WarnContext(ctx, "content purge re-arm failed",
			"content_id", a.ContentID,
			"error", err,
		)
	}
}

// Review resolves a pending appeal with an admin verdict.
func (s *Service) Review(ctx context.Context, adminID id.UserID, appealID id.AppealID, decision Decision, notes string) (*Appeal, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}
	if decision == DecisionReject && notes == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection requires explanatory notes")
	}

	a, err := s.store.Get(ctx, appealID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "appeal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store lookup failed")
	}
	if a.Status != StatusPending {
		return nil, dErrors.New(dErrors.CodeConflict, "appeal already resolved")
	}

	if decision == DecisionApprove {
		if err := s.applyApproval(ctx, a); err != nil {
			return nil, err
		}
		a.Status = StatusApproved
	} else {
		a.Status = StatusRejected
	}

	now := requestcontext.Now(ctx)
	a.ReviewedBy = adminID
	a.ReviewedAt = &now
	a.ReviewNotes = notes
	if err := s.store.Update(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store update failed")
	}

	if a.Status == StatusRejected && a.Type == TypeContent {
		s.resumePurge(ctx, a, now)
	}

	if s.metrics != nil {
		s.metrics.AppealsResolved.WithLabelValues(string(a.Status)).Inc()
	}
	s.emitAudit(ctx, audit.Entry{
		Actor:  adminID,
		Action: audit.ActionAppealReviewed,
		Target: a.ID.String(),
		Reason: notes,
		Metadata: map[string]string{
			"decision": string(decision),
			"type":     string(a.Type),
		},
	})

	outcome := "approved"
	message := "Your appeal was approved."
	if a.Status == StatusRejected {
		outcome = "rejected"
		message = "Your appeal was rejected: " + notes
	}
	s.notify(ctx, a.UserID, notify.TypeAppealOutcome,
		"Appeal "+outcome, message,
		map[string]string{"appealId": a.ID.String(), "outcome": outcome},
	)
	return a, nil
}

// applyApproval reverses the contested decision.
func (s *Service) applyApproval(ctx context.Context, a *Appeal) error {
	switch a.Type {
	case TypeBan:
		if _, err := s.bans.UnbanUser(ctx, a.UserID, ban.SourceManual); err != nil {
			// The ban may have lapsed while the appeal sat in the queue;
			// approving is then a no-op, not a failure.
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				return nil
			}
			return err
		}
		return nil
	case TypeContent:
		c, err := s.contents.Get(ctx, a.ContentType, a.ContentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "content no longer exists")
			}
			return dErrors.Wrap(err, dErrors.CodeExternal, "content store lookup failed")
		}
		c.Status = moderation.StatusActive
		c.HiddenReason = ""
		c.HiddenAt = nil
		c.CanAppeal = false
		c.AppealDeadline = nil
		c.PurgeAt = nil
		if err := s.contents.Put(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeExternal, "content restore failed")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeInternal, "unknown appeal type")
	}
}

// ListPending returns pending appeals for admin review. As a side effect it
// auto-resolves any ban appeal whose underlying ban no longer stands, and
// excludes it from the result.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*Appeal, error) {
	pending, err := s.store.ListByStatus(ctx, StatusPending, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store list failed")
	}

	out := make([]*Appeal, 0, len(pending))
	for _, a := range pending {
		resolved, err := s.maybeAutoResolve(ctx, a)
		if err != nil {
			return nil, err
		}
		if !resolved {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListByStatus returns appeals filtered by status; pending goes through the
// auto-resolving path.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Appeal, error) {
	if status == StatusPending {
		return s.ListPending(ctx, limit)
	}
	appeals, err := s.store.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store list failed")
	}
	return appeals, nil
}

// ListForUser returns the caller's own appeals.
func (s *Service) ListForUser(ctx context.Context, userID id.UserID) ([]*Appeal, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id required")
	}
	appeals, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store list failed")
	}
	return appeals, nil
}

// maybeAutoResolve closes a pending ban appeal whose ban has already ended.
// The ban status read applies lazy expiry first, so a lapsed temporary ban is
// reaped by this very check.
func (s *Service) maybeAutoResolve(ctx context.Context, a *Appeal) (bool, error) {
	if a.Type != TypeBan {
		return false, nil
	}
	p, err := s.bans.Status(ctx, a.UserID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			// Profile gone; nothing left to appeal.
			p = nil
		} else {
			return false, err
		}
	}
	if p != nil && p.IsBanned {
		return false, nil
	}

	now := requestcontext.Now(ctx)
	a.Status = StatusAutoResolved
	a.ReviewedAt = &now
	a.ReviewNotes = "ban expired before review"
	if err := s.store.Update(ctx, a); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeExternal, "appeal store update failed")
	}

	if s.metrics != nil {
		s.metrics.AppealsResolved.WithLabelValues(string(StatusAutoResolved)).Inc()
	}
	s.emitAudit(ctx, audit.Entry{
		Actor:    "system",
		Action:   audit.ActionAppealAutoClosed,
		Target:   a.ID.String(),
		Reason:   a.ReviewNotes,
		Metadata: map[string]string{"type": string(a.Type)},
	})
	s.notify(ctx, a.UserID, notify.TypeAppealOutcome,
		"Appeal resolved",
		"Your ban ended before the appeal was reviewed; no further action is needed.",
		map[string]string{"appealId": a.ID.String(), "outcome": string(StatusAutoResolved)},
	)
	return true, nil
}

func (s *Service) emitAudit(ctx context.Context, entry audit.Entry) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, entry)
	}
}

func (s *Service) notify(ctx context.Context, userID id.UserID, notifType, title, message string, metadata map[string]string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notify.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	})
}
