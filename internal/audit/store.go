package audit

import (
	"context"
	"time"
)

// Store persists admin action log entries. It is append-only from the
// service's point of view; deletion happens only through the retention
// sweeper (every implementation is also a retention.Source).
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByActor(ctx context.Context, actor string, limit int) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	// CountSince supports the per-admin action rate limit.
	CountSince(ctx context.Context, actor string, since time.Time) (int, error)
}
