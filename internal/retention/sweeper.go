package retention

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"warden/internal/platform/metrics"
)

// Source is a hot store holding retention-governed records.
type Source interface {
	// Entity names the record type; it becomes the archive partition.
	Entity() string
	// ListExpired returns up to limit records whose retention lapsed at now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Record, error)
	// DeleteByKey removes one record. Missing records are a no-op: the
	// sweeper may race a manual delete.
	DeleteByKey(ctx context.Context, key string) error
}

// Publisher is the deletion change stream boundary.
type Publisher interface {
	Publish(ctx context.Context, ev DeletionEvent) error
}

// Sweeper periodically expires records from all registered sources. Each
// record is published to the change stream before deletion; a publish
// failure skips the delete so the record is retried next sweep.
type Sweeper struct {
	sources   []Source
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithBatchSize caps how many records one sweep removes per source.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) { s.batchSize = n }
}

// NewSweeper builds a sweeper over the given sources.
func NewSweeper(publisher Publisher, logger *slog.Logger, interval time.Duration, sources []Source, opts ...Option) *Sweeper {
	s := &Sweeper{
		sources:   sources,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnce runs one pass over every source. Exported so tests and operators
// can trigger a sweep at a pinned instant.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) {
	for _, source := range s.sources {
		if err := s.sweepSource(ctx, source, now); err != nil {
			s.logger.Error("retention sweep failed",
				"entity", source.Entity(),
				"error", err,
			)
		}
	}
}

func (s *Sweeper) sweepSource(ctx context.Context, source Source, now time.Time) error {
	expired, err := source.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return err
	}
	for _, rec := range expired {
		ev := DeletionEvent{
			Entity:    source.Entity(),
			Key:       rec.Key,
			Cause:     CauseRetention,
			DeletedAt: now,
			Record:    rec.Payload,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			// The record stays hot and is retried next sweep; deleting
			// now would break the never-in-neither guarantee.
			s.logger.Error("deletion event publish failed, keeping record",
				"entity", ev.Entity,
				"key", ev.Key,
				"error", err,
			)
			continue
		}
		if err := source.DeleteByKey(ctx, rec.Key); err != nil {
			s.logger.Error("hot-store delete failed after publish",
				"entity", ev.Entity,
				"key", ev.Key,
				"error", err,
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.RetentionDeletes.WithLabelValues(source.Entity()).Inc()
		}
	}
	return nil
}

// StreamPublisher adapts a produce function to the Publisher interface.
type StreamPublisher struct {
	topic   string
	produce func(ctx context.Context, topic string, key, value []byte) error
}

// NewStreamPublisher wraps a Kafka producer's Produce method.
func NewStreamPublisher(topic string, produce func(ctx context.Context, topic string, key, value []byte) error) *StreamPublisher {
	return &StreamPublisher{topic: topic, produce: produce}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev DeletionEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// Key by entity/key so replays of the same deletion land in order.
	return p.produce(ctx, p.topic, []byte(ev.Entity+"/"+ev.Key), value)
}
