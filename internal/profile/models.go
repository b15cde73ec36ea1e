package profile

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// DurationUnit scales a ban duration. A duration of 0 means permanent
// regardless of unit.
type DurationUnit string

const (
	UnitMinutes DurationUnit = "minutes"
	UnitHours   DurationUnit = "hours"
	UnitDays    DurationUnit = "days"
)

// ParseDurationUnit constructs a DurationUnit from external input.
func ParseDurationUnit(s string) (DurationUnit, error) {
	u := DurationUnit(s)
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return u, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid duration unit: must be 'minutes', 'hours' or 'days'")
}

// Span converts a duration in this unit to a time.Duration.
func (u DurationUnit) Span(n int) time.Duration {
	switch u {
	case UnitMinutes:
		return time.Duration(n) * time.Minute
	case UnitHours:
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * 24 * time.Hour
	}
}

// Profile is the moderation-relevant view of a user profile. Registration
// creates it externally; warden only mutates the ban fields and the
// violation counter.
type Profile struct {
	UserID id.UserID
	// AccountName is what the identity provider resolves; it is not the
	// profile-store key.
	AccountName string
	CreatedAt   time.Time

	IsBanned        bool
	BanReason       string
	BannedAt        *time.Time
	BannedBy        id.UserID
	BanDuration     int
	BanDurationUnit DurationUnit
	// BanExpiresAt is nil for permanent bans.
	BanExpiresAt   *time.Time
	ViolationCount int
}

// BanAttributes is the full set of fields a ban writes onto a profile.
type BanAttributes struct {
	Reason    string
	BannedAt  time.Time
	BannedBy  id.UserID
	Duration  int
	Unit      DurationUnit
	ExpiresAt *time.Time
}

// BanExpired reports whether a temporary ban has lapsed at the given instant.
// Permanent bans never expire.
func (p *Profile) BanExpired(now time.Time) bool {
	if !p.IsBanned || p.BanExpiresAt == nil {
		return false
	}
	return !now.Before(*p.BanExpiresAt)
}
