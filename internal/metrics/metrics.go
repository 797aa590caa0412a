package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "telehealth"
)

// Outcome label values recorded by the booking service.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomePastTime = "past_time"
	OutcomeInvalid  = "invalid"
	OutcomeBusy     = "busy"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Entity label values for lifecycle transitions.
const (
	EntityAppointment = "appointment"
	EntitySession     = "session"
)

// BookingMetrics collects counters for the booking engine. All methods are
// safe on a nil receiver so wiring metrics stays optional in tests.
type BookingMetrics struct {
	commits         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	proposeDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *BookingMetrics {
	factory := promauto.With(reg)

	return &BookingMetrics{
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Booking commit attempts by outcome.",
		}, []string{"outcome"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "status_transitions_total",
			Help:      "Lifecycle transition attempts by entity and outcome.",
		}, []string{"entity", "outcome"}),
		proposeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "propose_slots_duration_seconds",
			Help:      "Latency of slot proposal computations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *BookingMetrics) RecordCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) RecordTransition(entity, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, outcome).Inc()
}

func (m *BookingMetrics) ObservePropose(d time.Duration) {
	if m == nil {
		return
	}
	m.proposeDuration.Observe(d.Seconds())
}

// OutboxMetrics counts notification deliveries made by the notify worker.
type OutboxMetrics struct {
	delivered prometheus.Counter
	failures  prometheus.Counter
}

func NewOutbox(reg prometheus.Registerer) *OutboxMetrics {
	factory := promauto.With(reg)

	return &OutboxMetrics{
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "notifications_delivered_total",
			Help:      "Notification requests successfully handed to the transport.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "notification_failures_total",
			Help:      "Notification deliveries that errored and were left pending.",
		}),
	}
}

func (m *OutboxMetrics) Delivered(n int) {
	if m == nil {
		return
	}
	m.delivered.Add(float64(n))
}

func (m *OutboxMetrics) Failed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
