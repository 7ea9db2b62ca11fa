package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the history module.
type Metrics struct {
	// Audit entries written, by action and entity type
	EntriesWritten *prometheus.CounterVec

	// Updates whose diff came back empty and wrote nothing
	WritesSuppressed prometheus.Counter

	// Audit writes lost to store failures (best-effort contract)
	WritesDropped prometheus.Counter

	// Photo history entries written
	PhotoWrites prometheus.Counter

	// Byte-identical re-uploads detected and skipped
	PhotoDedupHits prometheus.Counter

	// History query latency
	QueryLatency prometheus.Histogram

	// Queries answered as an empty page because the store failed
	QueryFailures prometheus.Counter

	// Events dropped because the publisher inbox was full
	PublishDropped prometheus.Counter
}

// New creates a Metrics instance with all history module metrics registered.
func New() *Metrics {
	return &Metrics{
		EntriesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rostertrail_history_entries_written_total",
			Help: "Total audit entries written by action and entity type",
		}, []string{"action", "entity_type"}),

		WritesSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostertrail_history_writes_suppressed_total",
			Help: "Total update recordings skipped because no field changed",
		}),

		WritesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostertrail_history_writes_dropped_total",
			Help: "Total audit writes lost to store failures",
		}),

		PhotoWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostertrail_history_photo_writes_total",
			Help: "Total photo history entries written",
		}),

		PhotoDedupHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostertrail_history_photo_dedup_hits_total",
			Help: "Total byte-identical photo re-uploads skipped",
		}),

		QueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rostertrail_history_query_duration_seconds",
			Help:    "Duration of history queries including redaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		QueryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostertrail_history_query_failures_total",
			Help: "Total history queries answered as empty pages due to store failures",
		}),

		PublishDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostertrail_history_publish_dropped_total",
			Help: "Total history events dropped because the publisher inbox was full",
		}),
	}
}

// IncrementWritten records a persisted audit entry.
func (m *Metrics) IncrementWritten(action, entityType string) {
	if m != nil {
		m.EntriesWritten.WithLabelValues(action, entityType).Inc()
	}
}

// IncrementSuppressed records a no-op update.
func (m *Metrics) IncrementSuppressed() {
	if m != nil {
		m.WritesSuppressed.Inc()
	}
}

// IncrementDropped records an audit write lost to a store failure.
func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.WritesDropped.Inc()
	}
}

// IncrementPhotoWrite records a persisted photo history entry.
func (m *Metrics) IncrementPhotoWrite() {
	if m != nil {
		m.PhotoWrites.Inc()
	}
}

// IncrementPhotoDedup records a skipped byte-identical re-upload.
func (m *Metrics) IncrementPhotoDedup() {
	if m != nil {
		m.PhotoDedupHits.Inc()
	}
}

// ObserveQueryLatency records the duration of one history query.
func (m *Metrics) ObserveQueryLatency(d time.Duration) {
	if m != nil {
		m.QueryLatency.Observe(d.Seconds())
	}
}

// IncrementQueryFailure records a query served degraded.
func (m *Metrics) IncrementQueryFailure() {
	if m != nil {
		m.QueryFailures.Inc()
	}
}

// IncrementPublishDropped records an event dropped at the publisher inbox.
func (m *Metrics) IncrementPublishDropped() {
	if m != nil {
		m.PublishDropped.Inc()
	}
}
