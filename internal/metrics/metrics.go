// Package metrics exposes Prometheus collectors for submissions and drains.
//
// Every method is nil-safe so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeQueued    = "queued"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Drain results.
const (
	ResultComplete = "complete"
	ResultAborted  = "aborted"
	ResultSkipped  = "skipped"
	ResultBusy     = "busy"
	ResultError    = "error"
)

// Metrics holds the stocksync collectors.
type Metrics struct {
	submissions  *prometheus.CounterVec
	drains       *prometheus.CounterVec
	duration     prometheus.Histogram
	replayed     prometheus.Counter
	deadLettered prometheus.Counter
	pending      prometheus.Gauge
	online       prometheus.Gauge
}

// NewMetrics registers the collectors against registerer. A nil registerer
// uses a fresh registry, which keeps tests independent of each other.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	return buildMetrics(registerer)
}

// Submission counts one Submit call by outcome.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// Replayed counts one record confirmed by a drain.
func (m *Metrics) Replayed() {
	if m == nil {
		return
	}
	m.replayed.Inc()
}

// DeadLettered counts one record moved to the dead letter table.
func (m *Metrics) DeadLettered() {
	if m == nil {
		return
	}
	m.deadLettered.Inc()
}

// SetStatus publishes the latest status snapshot.
func (m *Metrics) SetStatus(online bool, pending int) {
	if m == nil {
		return
	}
	v := 0.0
	if online {
		v = 1
	}
	m.online.Set(v)
	m.pending.Set(float64(pending))
}

// Tracker instruments a single drain pass.
type Tracker struct {
	metrics *Metrics
	start   time.Time
}

// TrackDrain starts timing a drain pass.
func (m *Metrics) TrackDrain() *Tracker {
	return &Tracker{metrics: m, start: time.Now()}
}

// End records the pass result and duration.
func (t *Tracker) End(result string) {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.drains.WithLabelValues(result).Inc()
	t.metrics.duration.Observe(time.Since(t.start).Seconds())
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksync_submissions_total",
		Help: "Movement submissions partitioned by outcome.",
	}, []string{"outcome"})
	drains := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksync_drains_total",
		Help: "Drain passes partitioned by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stocksync_drain_duration_seconds",
		Help:    "Duration in seconds of drain passes that ran.",
		Buckets: prometheus.DefBuckets,
	})
	replayed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stocksync_replayed_total",
		Help: "Queued movements confirmed by the remote endpoint during a drain.",
	})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stocksync_dead_lettered_total",
		Help: "Queued movements moved to the dead letter table.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stocksync_pending",
		Help: "Movements waiting in the local queue.",
	})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stocksync_online",
		Help: "1 when the connectivity monitor reports online.",
	})
	registerer.MustRegister(submissions, drains, duration, replayed, deadLettered, pending, online)
	return &Metrics{
		submissions:  submissions,
		drains:       drains,
		duration:     duration,
		replayed:     replayed,
		deadLettered: deadLettered,
		pending:      pending,
		online:       online,
	}
}
