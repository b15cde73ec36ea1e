package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trust & safety engine.
type Metrics struct {
	BansExecuted      *prometheus.CounterVec // source: manual|auto, outcome: ok|error
	BanCompensations  prometheus.Counter
	ModerationActions *prometheus.CounterVec // action: dismiss|warn|hide_content|ban_user
	AppealsSubmitted  *prometheus.CounterVec // type: ban|content
	AppealsResolved   *prometheus.CounterVec // outcome: approved|rejected|auto_resolved
	RetentionDeletes  *prometheus.CounterVec // entity type
	ArchiveMerges     *prometheus.CounterVec // entity type
	ArchiveFailures   prometheus.Counter
	SagaStepDuration  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		BansExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_bans_total",
			Help: "Ban and unban operations by source and outcome",
		}, []string{"op", "source", "outcome"}),
		BanCompensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_ban_compensations_total",
			Help: "Compensating rollbacks run by the ban saga",
		}),
		ModerationActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_moderation_actions_total",
			Help: "Moderation actions executed by action type",
		}, []string{"action"}),
		AppealsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_appeals_submitted_total",
			Help: "Appeals submitted by type",
		}, []string{"type"}),
		AppealsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_appeals_resolved_total",
			Help: "Appeals leaving pending state by outcome",
		}, []string{"outcome"}),
		RetentionDeletes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_retention_deletes_total",
			Help: "Records removed from the hot store by the retention sweeper",
		}, []string{"entity"}),
		ArchiveMerges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_archive_merges_total",
			Help: "Records merged into cold archive blobs",
		}, []string{"entity"}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_archive_failures_total",
			Help: "Archive writes that exhausted retries (operational alert)",
		}),
		SagaStepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_ban_saga_step_seconds",
			Help:    "Latency of individual ban saga steps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"step"}),
	}
}
