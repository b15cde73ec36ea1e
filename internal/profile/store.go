package profile

import (
	"context"

	id "warden/pkg/domain"
)

// Store is the key-value profile entity. Implementations must make SetBan and
// ClearBan conditional writes: the losing side of a concurrent ban race gets
// sentinel.ErrConflict, never a corrupted profile.
type Store interface {
	Get(ctx context.Context, userID id.UserID) (*Profile, error)
	GetByAccountName(ctx context.Context, name string) (*Profile, error)
	// Create exists for seeding and tests; registration is an external
	// collaborator in production.
	Create(ctx context.Context, p *Profile) error
	// SetBan writes ban attributes iff the profile exists and is not banned.
	SetBan(ctx context.Context, userID id.UserID, attrs BanAttributes) error
	// ClearBan removes ban attributes iff the profile is currently banned.
	ClearBan(ctx context.Context, userID id.UserID) error
	IncrementViolationCount(ctx context.Context, userID id.UserID) (int, error)
	ListBanned(ctx context.Context) ([]*Profile, error)
}
