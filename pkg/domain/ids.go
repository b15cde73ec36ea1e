// Package domain holds identifier types shared across warden services.
//
// Usage: construct via the Parse functions at trust boundaries so malformed
// input is rejected once; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "warden/pkg/domain-errors"
)

// UserID is the profile-store key for a platform user. It is an opaque string
// assigned at registration; it is not necessarily the account name the
// identity provider resolves (see Profile.AccountName).
type UserID string

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "user id cannot be empty")
	}
	return UserID(s), nil
}

func (u UserID) String() string { return string(u) }

// IsZero reports whether the ID is unset.
func (u UserID) IsZero() bool { return u == "" }

// AppealID identifies an appeal.
type AppealID uuid.UUID

// NewAppealID allocates a fresh appeal ID.
func NewAppealID() AppealID { return AppealID(uuid.New()) }

// ParseAppealID constructs an AppealID from external input.
func ParseAppealID(s string) (AppealID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AppealID{}, dErrors.New(dErrors.CodeValidation, "invalid appeal id")
	}
	return AppealID(u), nil
}

func (a AppealID) String() string { return uuid.UUID(a).String() }
func (a AppealID) IsNil() bool    { return uuid.UUID(a) == uuid.Nil }

// MarshalText renders the canonical UUID form for JSON and logs.
func (a AppealID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AppealID) UnmarshalText(b []byte) error {
	parsed, err := ParseAppealID(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ViolationID identifies one immutable violation record.
type ViolationID uuid.UUID

// NewViolationID allocates a fresh violation ID.
func NewViolationID() ViolationID { return ViolationID(uuid.New()) }

// ParseViolationID constructs a ViolationID from external input.
func ParseViolationID(s string) (ViolationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ViolationID{}, dErrors.New(dErrors.CodeValidation, "invalid violation id")
	}
	return ViolationID(u), nil
}

func (v ViolationID) String() string { return uuid.UUID(v).String() }
func (v ViolationID) IsNil() bool    { return uuid.UUID(v) == uuid.Nil }

// MarshalText renders the canonical UUID form for JSON and logs.
func (v ViolationID) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *ViolationID) UnmarshalText(b []byte) error {
	parsed, err := ParseViolationID(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ReportID identifies a report filed against content.
type ReportID uuid.UUID

// NewReportID allocates a fresh report ID.
func NewReportID() ReportID { return ReportID(uuid.New()) }

func (r ReportID) String() string { return uuid.UUID(r).String() }

// ParseReportID constructs a ReportID from external input.
func ParseReportID(s string) (ReportID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ReportID{}, dErrors.New(dErrors.CodeValidation, "invalid report id")
	}
	return ReportID(u), nil
}

// MarshalText renders the canonical UUID form for JSON and logs.
func (r ReportID) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *ReportID) UnmarshalText(b []byte) error {
	parsed, err := ParseReportID(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
