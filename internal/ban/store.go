package ban

import (
	"context"

	id "warden/pkg/domain"
)

// ScheduleStore persists expiry records for temporary bans. Invariant: a
// record exists if and only if the user has an active temporary ban, so Put
// and Delete are driven exclusively by the lifecycle service.
type ScheduleStore interface {
	Put(ctx context.Context, rec ScheduleRecord) error
	// Get returns sentinel.ErrNotFound when no record exists.
	Get(ctx context.Context, userID id.UserID) (*ScheduleRecord, error)
	// Delete returns sentinel.ErrNotFound for a missing record; callers
	// decide whether absence matters.
	Delete(ctx context.Context, userID id.UserID) error
}
