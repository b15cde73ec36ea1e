package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"warden/internal/platform/kafka"
	"warden/internal/platform/metrics"
	"warden/internal/retention"
)

// DeletionHandler consumes the deletion change stream and preserves
// retention-expired records in the cold archive. Delivery is at-least-once;
// Merge is idempotent by record key, so replays are safe.
type DeletionHandler struct {
	store   ObjectStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the DeletionHandler.
type Option func(*DeletionHandler)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *DeletionHandler) { h.metrics = m }
}

func NewDeletionHandler(store ObjectStore, logger *slog.Logger, opts ...Option) *DeletionHandler {
	h := &DeletionHandler{store: store, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one deletion event. Only retention-expiry deletions are
// archived; the cause tag on the event decides, never the identity of
// whoever deleted. A returned error leaves the record uncommitted for
// redelivery.
func (h *DeletionHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	var ev retention.DeletionEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// A malformed event will never parse on redelivery either; log it
		// loudly and move on.
		h.logger.ErrorContext(ctx, "malformed deletion event, skipping",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	if ev.Cause != retention.CauseRetention {
		h.logger.DebugContext(ctx, "non-retention deletion observed, not archived",
			"entity", ev.Entity,
			"key", ev.Key,
			"cause", string(ev.Cause),
		)
		return nil
	}

	if err := Merge(ctx, h.store, ev.Entity, ev.DeletedAt, ev.Key, ev.Record); err != nil {
		if h.metrics != nil {
			h.metrics.ArchiveFailures.Inc()
		}
		h.logger.ErrorContext(ctx, "archive merge failed, will retry",
			"entity", ev.Entity,
			"key", ev.Key,
			"error", err,
		)
		return fmt.Errorf("archive %s/%s: %w", ev.Entity, ev.Key, err)
	}

	if h.metrics != nil {
		h.metrics.ArchiveMerges.WithLabelValues(ev.Entity).Inc()
	}
	return nil
}
