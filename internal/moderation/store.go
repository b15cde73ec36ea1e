package moderation

import (
	"context"
	"time"

	id "warden/pkg/domain"
)

// ViolationStore persists immutable violation evidence.
type ViolationStore interface {
	// Add appends one violation. Violations are never updated or deleted by
	// the executor.
	Add(ctx context.Context, v Violation) error
	// ListByUser returns the user's violations, oldest first.
	ListByUser(ctx context.Context, userID id.UserID) ([]Violation, error)
	// CountByContent reports how many violations reference the content.
	CountByContent(ctx context.Context, contentType, contentID string) (int, error)
}

// ContentStore persists the moderation-relevant fields of content records.
//
// Put is an upsert: the external content service owns the full entity, this
// store only shadows moderation state.
type ContentStore interface {
	// Get returns the content record or sentinel.ErrNotFound.
	Get(ctx context.Context, contentType, contentID string) (*Content, error)
	Put(ctx context.Context, c *Content) error
}

// ReportStore persists user reports against content.
type ReportStore interface {
	Add(ctx context.Context, r Report) error
	// ListByContent returns all reports against the content, oldest first.
	ListByContent(ctx context.Context, contentType, contentID string) ([]Report, error)
	// CloseOpen transitions every pending report on the content to the given
	// terminal status, stamping ResolvedAt, and reports how many it closed.
	CloseOpen(ctx context.Context, contentType, contentID string, status ReportStatus, resolvedAt time.Time) (int, error)
	// ListResolved returns reports in a terminal state, oldest first, capped
	// at limit. Feeds the on-demand batch archival operation.
	ListResolved(ctx context.Context, limit int) ([]Report, error)
	// Delete removes one report, or sentinel.ErrNotFound.
	Delete(ctx context.Context, reportID id.ReportID) error
}
