package appeal

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Type distinguishes what an appeal contests.
type Type string

const (
	TypeBan     Type = "ban"
	TypeContent Type = "content"
)

// ParseType validates an appeal type from external input.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeBan, TypeContent:
		return Type(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown appeal type")
	}
}

// Status is the appeal state machine. Pending is the only non-terminal state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusAutoResolved Status = "auto_resolved"
)

// Decision is an admin review verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a review decision from external input.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown review decision")
	}
}

// ViolationSnapshot freezes the violation context at submission time, so a
// later purge of the underlying records does not erase what the appeal was
// about.
type ViolationSnapshot struct {
	Reason      string `json:"reason"`
	ReportCount int    `json:"reportCount"`
	Severity    string `json:"severity,omitempty"`
	ViolationID string `json:"violationId,omitempty"`
}

// Appeal is a user request to reverse a ban or a content-hiding decision.
type Appeal struct {
	ID          id.AppealID       `json:"id"`
	UserID      id.UserID         `json:"userId"`
	Type        Type              `json:"appealType"`
	ContentType string            `json:"contentType,omitempty"`
	ContentID   string            `json:"contentId,omitempty"`
	Reason      string            `json:"reason"`
	Status      Status            `json:"status"`
	Snapshot    ViolationSnapshot `json:"snapshot"`
	SubmittedAt time.Time         `json:"submittedAt"`

	ReviewedBy  id.UserID  `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`

	// RetainUntil bounds retention; the sweeper archives the appeal after
	// this instant so admins keep review access well past the underlying
	// expiry.
	RetainUntil time.Time `json:"retainUntil"`
}

const minReasonLength = 10

// SubmitRequest is a validated appeal submission.
type SubmitRequest struct {
	UserID      id.UserID
	Type        Type
	Reason      string
	ContentType string
	ContentID   string
}

func (r SubmitRequest) Validate() error {
	if r.UserID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "user id required")
	}
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if len(r.Reason) < minReasonLength {
		return dErrors.New(dErrors.CodeValidation, "appeal reason must be at least 10 characters")
	}
	if r.Type == TypeContent && (r.ContentType == "" || r.ContentID == "") {
		return dErrors.New(dErrors.CodeValidation, "content reference required for content appeals")
	}
	if r.Type == TypeBan && (r.ContentType != "" || r.ContentID != "") {
		return dErrors.New(dErrors.CodeValidation, "ban appeals carry no content reference")
	}
	return nil
}
