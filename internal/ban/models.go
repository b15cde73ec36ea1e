package ban

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Source attributes an unban for audit purposes.
type Source string

const (
	// SourceManual: an admin or an approved appeal lifted the ban.
	SourceManual Source = "manual"
	// SourceAuto: a read path noticed the expiry had passed.
	SourceAuto Source = "auto"
)

// ScheduleRecord marks a temporary active ban. Its existence is the
// system-wide signal that a ban will expire; permanent bans have none.
type ScheduleRecord struct {
	UserID    id.UserID
	ExpiresAt time.Time
}

// Request is a validated ban request.
type Request struct {
	AdminID  id.UserID
	TargetID id.UserID
	Reason   string
	Duration int
	Unit     string
}

// Validate enforces the input rules shared by the direct ban endpoint and the
// moderation executor.
func (r Request) Validate() error {
	if r.TargetID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "target user id required")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "ban reason required")
	}
	if r.Duration < 0 {
		return dErrors.New(dErrors.CodeValidation, "ban duration cannot be negative")
	}
	return nil
}
