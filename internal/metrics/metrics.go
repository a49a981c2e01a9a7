// Package metrics holds the Prometheus collectors for the panic fan-out.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safecircle"

// Trigger outcomes used as the "outcome" label.
const (
	OutcomeSuccess        = "success"
	OutcomeNoContacts     = "no_contacts"
	OutcomeNoDeliverable  = "no_deliverable"
	OutcomeEmitterMissing = "emitter_missing"
	OutcomeEmitterBlocked = "emitter_inactive"
	OutcomeDispatchFailed = "dispatch_failed"
	OutcomeError          = "error"
)

type Metrics struct {
	PanicTriggers       *prometheus.CounterVec
	PushDeliveries      *prometheus.CounterVec
	LedgerWriteFailures prometheus.Counter
	DispatchDuration    prometheus.Histogram
	BreakerState        *prometheus.GaugeVec
}

// New registers the collectors on reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PanicTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panic_triggers_total",
			Help:      "Panic alerts triggered, by outcome.",
		}, []string{"outcome"}),
		PushDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panic_push_deliveries_total",
			Help:      "Per-receiver push results reported by the gateway.",
		}, []string{"result"}),
		LedgerWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panic_ledger_write_failures_total",
			Help:      "Alerts that were pushed but could not be recorded in the notification ledger.",
		}),
		DispatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "panic_dispatch_duration_seconds",
			Help:      "Time spent in the push gateway per panic alert.",
			Buckets:   prometheus.DefBuckets,
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_gateway_breaker_state",
			Help:      "Push gateway circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}
}

func (m *Metrics) ObserveTrigger(outcome string) {
	m.PanicTriggers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddDeliveries(delivered, failed int) {
	m.PushDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	m.PushDeliveries.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveDispatch(d time.Duration) {
	m.DispatchDuration.Observe(d.Seconds())
}

// SetBreakerState records a breaker transition; state follows gobreaker's ordering.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
