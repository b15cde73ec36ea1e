package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured admin action entries. It is append-only and
// uses the store layer for persistence so tests can swap sinks easily.
// Append failures are logged, never escalated: an audit hiccup must not fail
// the moderation decision it describes.
type Publisher struct {
	store     Store
	logger    *slog.Logger
	retention time.Duration
}

func NewPublisher(store Store, logger *slog.Logger, retention time.Duration) *Publisher {
	return &Publisher{store: store, logger: logger, retention: retention}
}

// Emit appends one entry, filling ID, timestamp and retention expiry.
func (p *Publisher) Emit(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.ExpiresAt = entry.Timestamp.Add(p.retention)

	if err := p.store.Append(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", string(entry.Action),
			"actor", entry.Actor.String(),
			"target", entry.Target,
			"error", err,
		)
	}
}

// CountSince reports how many actions the actor performed in the window.
func (p *Publisher) CountSince(ctx context.Context, actor string, since time.Time) (int, error) {
	return p.store.CountSince(ctx, actor, since)
}
