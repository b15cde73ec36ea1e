package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"warden/internal/audit"
	"warden/internal/ban"
	"warden/internal/notify"
	"warden/internal/platform/metrics"
	"warden/internal/profile"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// Service executes admin decisions on reported content. The evidence rule
// governs ordering: the violation record is written before any state-changing
// side effect, so a failure partway through never leaves an unrecorded
// decision.
type Service struct {
	violations ViolationStore
	contents   ContentStore
	reports    ReportStore
	profiles   profile.Store
	bans       *ban.Service
	notifier   notify.Notifier
	auditor    *audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	grace      time.Duration
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

// WithGracePeriod overrides the appeal window for hidden content.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

const defaultGracePeriod = 7 * 24 * time.Hour

func New(
	violations ViolationStore,
	contents ContentStore,
	reports ReportStore,
	profiles profile.Store,
	bans *ban.Service,
	auditor *audit.Publisher,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if violations == nil || contents == nil || reports == nil {
		return nil, errors.New("moderation stores are required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if bans == nil {
		return nil, errors.New("ban service is required")
	}

	svc := &Service{
		violations: violations,
		contents:   contents,
		reports:    reports,
		profiles:   profiles,
		bans:       bans,
		auditor:    auditor,
		logger:     logger,
		grace:      defaultGracePeriod,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

var severityByAction = map[Action]Severity{
	ActionWarn:        SeverityLow,
	ActionHideContent: SeverityMedium,
	ActionBanUser:     SeverityHigh,
}

// TakeAction executes one moderation decision against a piece of content.
func (s *Service) TakeAction(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	content, err := s.contents.Get(ctx, req.ContentType, req.ContentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "content not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "content store lookup failed")
	}

	now := requestcontext.Now(ctx)

	if req.Action == ActionDismiss {
		return s.dismiss(ctx, req, content, now)
	}

	// Evidence first. Everything after this point mutates state.
	violation := Violation{
		ID:          id.NewViolationID(),
		UserID:      content.AuthorID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Severity:    severityByAction[req.Action],
		Reason:      req.Reason,
		AdminID:     req.AdminID,
		CreatedAt:   now,
	}
	if err := s.violations.Add(ctx, violation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "violation write failed")
	}

	if _, err := s.profiles.IncrementViolationCount(ctx, content.AuthorID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "violation count update failed")
	}

	switch req.Action {
	case ActionHideContent:
		s.hide(content, req.Reason, now, true)
	case ActionBanUser:
		s.hide(content, req.Reason+" (due to ban)", now, false)
	}
	s.stamp(content, req, now)
	if err := s.contents.Put(ctx, content); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "content update failed")
	}

	closed, err := s.reports.CloseOpen(ctx, req.ContentType, req.ContentID, ReportActionTaken, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "report close failed")
	}

	if req.Action == ActionBanUser {
		if _, err := s.bans.BanUser(ctx, ban.Request{
			AdminID:  req.AdminID,
			TargetID: content.AuthorID,
			Reason:   req.Reason,
			Duration: req.BanDuration,
			Unit:     req.BanUnit,
		}); err != nil {
			return nil, err
		}
	}

	s.notifyAuthor(ctx, req.Action, content, violation)
	s.record(ctx, req, violation, closed)

	return &Outcome{
		Action:        req.Action,
		Violation:     &violation,
		Content:       content,
		ReportsClosed: closed,
	}, nil
}

func (s *Service) dismiss(ctx context.Context, req Request, content *Content, now time.Time) (*Outcome, error) {
	closed, err := s.reports.CloseOpen(ctx, req.ContentType, req.ContentID, ReportActionTaken, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "report close failed")
	}
	s.record(ctx, req, Violation{}, closed)
	return &Outcome{Action: ActionDismiss, Content: content, ReportsClosed: closed}, nil
}

// hide transitions content to hidden. Appealable hides open the grace window
// and schedule the purge at its close; ban hides are not separately
// appealable (the ban appeal is the recourse) and carry no purge schedule of
// their own.
func (s *Service) hide(content *Content, reason string, now time.Time, appealable bool) {
	hiddenAt := now
	content.Status = StatusHidden
	content.HiddenReason = reason
	content.HiddenAt = &hiddenAt
	content.CanAppeal = appealable
	if appealable {
		deadline := hiddenAt.Add(s.grace)
		content.AppealDeadline = &deadline
		content.PurgeAt = &deadline
	} else {
		content.AppealDeadline = nil
		content.PurgeAt = nil
	}
}

func (s *Service) stamp(content *Content, req Request, now time.Time) {
	actionAt := now
	content.LastAction = req.Action
	content.LastActionReason = req.Reason
	content.LastActionBy = req.AdminID
	content.LastActionAt = &actionAt
}

func (s *Service) notifyAuthor(ctx context.Context, action Action, content *Content, violation Violation) {
	if s.notifier == nil {
		return
	}
	metadata := map[string]string{
		"violationId": violation.ID.String(),
		"contentType": content.ContentType,
		"contentId":   content.ContentID,
	}
	var n notify.Notification
	switch action {
	case ActionWarn:
		n = notify.Notification{
			UserID:  content.AuthorID,
			Type:    notify.TypeWarning,
			Title:   "Moderation warning",
			Message: "A moderator reviewed your content and issued a warning: " + violation.Reason,
		}
	case ActionHideContent:
		metadata["appealDeadline"] = content.AppealDeadline.UTC().Format(time.RFC3339)
		n = notify.Notification{
			UserID:  content.AuthorID,
			Type:    notify.TypeContentHidden,
			Title:   "Your content was hidden",
			Message: "Your content was hidden by a moderator. You may appeal until " + content.AppealDeadline.UTC().Format(time.RFC3339) + ".",
		}
	case ActionBanUser:
		// The ban lifecycle already notified the author about the ban
		// itself; nothing further here.
		return
	default:
		return
	}
	n.Metadata = metadata
	_ = s.notifier.Send(ctx, n)
}

func (s *Service) record(ctx context.Context, req Request, violation Violation, closed int) {
	if s.metrics != nil {
		s.metrics.ModerationActions.WithLabelValues(string(req.Action)).Inc()
	}
	if s.auditor == nil {
		return
	}
	metadata := map[string]string{
		"action":         string(req.Action),
		"reports_closed": strconv.Itoa(closed),
	}
	if !violation.ID.IsNil() {
		metadata["violation_id"] = violation.ID.String()
		metadata["severity"] = string(violation.Severity)
	}
	s.auditor.Emit(ctx, audit.Entry{
		Actor:    req.AdminID,
		Action:   audit.ActionModeration,
		Target:   contentKey(req.ContentType, req.ContentID),
		Reason:   req.Reason,
		Metadata: metadata,
	})
}

// ViolationHistory returns a user's violations for the admin detail view.
func (s *Service) ViolationHistory(ctx context.Context, userID id.UserID) ([]Violation, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id required")
	}
	violations, err := s.violations.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "violation lookup failed")
	}
	return violations, nil
}
