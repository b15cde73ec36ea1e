package appeal

import (
	"context"

	id "warden/pkg/domain"
)

// Store persists appeals.
//
// Create enforces the single-pending rule as a conditional write: at most one
// pending appeal per (user, type, content reference). A losing concurrent
// submit gets sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, a *Appeal) error
	// Get returns the appeal or sentinel.ErrNotFound.
	Get(ctx context.Context, appealID id.AppealID) (*Appeal, error)
	// Update replaces a stored appeal, or sentinel.ErrNotFound.
	Update(ctx context.Context, a *Appeal) error
	// ListByStatus returns appeals in the given state, oldest first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Appeal, error)
	// ListByUser returns the user's appeals, oldest first.
	ListByUser(ctx context.Context, userID id.UserID) ([]*Appeal, error)
}
