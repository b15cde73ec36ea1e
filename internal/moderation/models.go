package moderation

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Action is an admin decision on reported content.
type Action string

const (
	ActionDismiss     Action = "dismiss"
	ActionWarn        Action = "warn"
	ActionHideContent Action = "hide_content"
	ActionBanUser     Action = "ban_user"
)

// ParseAction validates an action string from external input.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionDismiss, ActionWarn, ActionHideContent, ActionBanUser:
		return Action(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown moderation action")
	}
}

// Severity grades a violation. Each action maps to a fixed severity.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Violation is immutable evidence of one moderation decision. Written before
// any state-changing side effect, so a later failure never leaves an
// unrecorded decision. Never mutated; it accumulates per user.
type Violation struct {
	ID          id.ViolationID `json:"id"`
	UserID      id.UserID      `json:"userId"`
	ContentType string         `json:"contentType"`
	ContentID   string         `json:"contentId"`
	Severity    Severity       `json:"severity"`
	Reason      string         `json:"reason"`
	AdminID     id.UserID      `json:"adminId"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ContentStatus is the moderation-relevant lifecycle of a piece of content.
type ContentStatus string

const (
	StatusActive ContentStatus = "active"
	StatusHidden ContentStatus = "hidden"
)

// Content carries the moderation-relevant fields of a post or comment. The
// rest of the content entity (body, images, likes) lives with the external
// content service.
type Content struct {
	ContentType string        `json:"contentType"`
	ContentID   string        `json:"contentId"`
	AuthorID    id.UserID     `json:"authorId"`
	Status      ContentStatus `json:"status"`

	HiddenReason   string     `json:"hiddenReason,omitempty"`
	HiddenAt       *time.Time `json:"hiddenAt,omitempty"`
	CanAppeal      bool       `json:"canAppeal"`
	AppealDeadline *time.Time `json:"appealDeadline,omitempty"`
	// PurgeAt drives bounded retention for hidden content: once the appeal
	// window closes unexercised, the sweeper deletes the record. A pending
	// appeal suspends the clock (nil) until the appeal is resolved.
	PurgeAt *time.Time `json:"purgeAt,omitempty"`

	LastAction       Action     `json:"lastAction,omitempty"`
	LastActionReason string     `json:"lastActionReason,omitempty"`
	LastActionBy     id.UserID  `json:"lastActionBy,omitempty"`
	LastActionAt     *time.Time `json:"lastActionAt,omitempty"`
}

// ReportStatus tracks a user report against content.
type ReportStatus string

const (
	ReportPending     ReportStatus = "pending"
	ReportActionTaken ReportStatus = "action_taken"
	ReportDismissed   ReportStatus = "dismissed"
)

// Report is one user report filed against content; many reports may target
// the same content.
type Report struct {
	ID          id.ReportID  `json:"id"`
	ContentType string       `json:"contentType"`
	ContentID   string       `json:"contentId"`
	ReporterID  id.UserID    `json:"reporterId"`
	Reason      string       `json:"reason"`
	Status      ReportStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty"`
}

// Request is a validated moderation action request.
type Request struct {
	AdminID     id.UserID
	Action      Action
	ContentType string
	ContentID   string
	Reason      string
	BanDuration int
	BanUnit     string
}

func (r Request) Validate() error {
	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}
	if r.ContentType == "" || r.ContentID == "" {
		return dErrors.New(dErrors.CodeValidation, "content reference required")
	}
	if r.Action != ActionDismiss && r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "moderation reason required")
	}
	return nil
}

// Outcome reports what a moderation action changed.
type Outcome struct {
	Action        Action     `json:"action"`
	Violation     *Violation `json:"violation,omitempty"`
	Content       *Content   `json:"content,omitempty"`
	ReportsClosed int        `json:"reportsClosed"`
}
