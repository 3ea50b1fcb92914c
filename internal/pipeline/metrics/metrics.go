package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the match lifecycle.
// Tracks accepted and rejected transitions, optimistic-commit retries, bulk
// batches and notification outcomes.
type Metrics struct {
	TransitionsTotal        *prometheus.CounterVec
	TransitionsRejected     *prometheus.CounterVec
	TransitionConflicts     prometheus.Counter
	TransitionDuration      prometheus.Histogram
	BulkBatchSize           prometheus.Histogram
	BulkOutcomes            *prometheus.CounterVec
	BulkDuration            prometheus.Histogram
	NotificationsTotal      *prometheus.CounterVec
	NotificationBreakerOpen prometheus.Gauge
	MatchesCreated          prometheus.Counter
}

// New registers all lifecycle metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchflow_transitions_total",
			Help: "Accepted transitions by source status, target status and kind (forward or correction)",
		}, []string{"from", "to", "kind"}),
		TransitionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchflow_transitions_rejected_total",
			Help: "Rejected transitions by error code",
		}, []string{"code"}),
		TransitionConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "matchflow_transition_conflicts_total",
			Help: "Optimistic commits that lost a race and were re-validated",
		}),
		TransitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchflow_transition_duration_seconds",
			Help:    "Duration of single-match transitions including retries",
			Buckets: durationBuckets,
		}),
		BulkBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchflow_bulk_batch_size",
			Help:    "Number of distinct matches per bulk transition request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		BulkOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchflow_bulk_matches_total",
			Help: "Per-match outcomes inside bulk transitions",
		}, []string{"outcome"}),
		BulkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchflow_bulk_duration_seconds",
			Help:    "Duration of bulk transition requests",
			Buckets: durationBuckets,
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchflow_notifications_total",
			Help: "Notification requests by outcome (requested, failed, dropped, undelivered)",
		}, []string{"outcome"}),
		NotificationBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "matchflow_notification_breaker_open",
			Help: "1 while the notification transport circuit is open",
		}),
		MatchesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "matchflow_matches_created_total",
			Help: "Total number of matches created",
		}),
	}
}

// IncrementTransition records an accepted transition.
func (m *Metrics) IncrementTransition(from, to string, correction bool) {
	kind := "forward"
	if correction {
		kind = "correction"
	}
	m.TransitionsTotal.WithLabelValues(from, to, kind).Inc()
}

func (m *Metrics) IncrementRejected(code string) {
	m.TransitionsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementConflict() {
	m.TransitionConflicts.Inc()
}

// ObserveTransition records the duration of a Transition call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}

// ObserveBulk records batch size, per-match outcomes and duration.
func (m *Metrics) ObserveBulk(start time.Time, size, succeeded, failed int) {
	m.BulkBatchSize.Observe(float64(size))
	m.BulkOutcomes.WithLabelValues("succeeded").Add(float64(succeeded))
	m.BulkOutcomes.WithLabelValues("failed").Add(float64(failed))
	m.BulkDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementNotification(outcome string) {
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.NotificationBreakerOpen.Set(1)
		return
	}
	m.NotificationBreakerOpen.Set(0)
}

func (m *Metrics) IncrementMatchCreated() {
	m.MatchesCreated.Inc()
}
