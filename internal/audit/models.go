package audit

import (
	"time"

	"github.com/google/uuid"

	id "warden/pkg/domain"
)

// ActionType labels an administrative action in the log.
type ActionType string

const (
	ActionBanUser          ActionType = "ban_user"
	ActionUnbanUser        ActionType = "unban_user"
	ActionModeration       ActionType = "moderation_action"
	ActionAppealSubmitted  ActionType = "appeal_submitted"
	ActionAppealReviewed   ActionType = "appeal_reviewed"
	ActionAppealAutoClosed ActionType = "appeal_auto_resolved"
	ActionArchiveReports   ActionType = "archive_reports"
)

// Entry is one append-only admin action log record. Entries are governed by
// bounded retention (ExpiresAt); the retention sweeper moves expired entries
// to the cold archive, so the trail is never lost.
type Entry struct {
	ID        uuid.UUID         `json:"id"`
	Actor     id.UserID         `json:"actor"`
	Action    ActionType        `json:"actionType"`
	Target    string            `json:"target"`
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	ExpiresAt time.Time         `json:"expiresAt"`
}
