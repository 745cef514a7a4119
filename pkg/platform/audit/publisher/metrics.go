package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Emitted             *prometheus.CounterVec
	Dropped             prometheus.Counter
	SampledOut          prometheus.Counter
	PersistFailures     prometheus.Counter
	FallbackLogged      prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

// NewMetrics registers audit publisher metrics against reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_audit_events_emitted_total",
			Help: "Audit events accepted by the publisher by category",
		}, []string{"category"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		}),
		SampledOut: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_audit_events_sampled_out_total",
			Help: "Operations events skipped by the sampler",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_audit_persist_failures_total",
			Help: "Audit store write failures",
		}),
		FallbackLogged: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_audit_fallback_logged_total",
			Help: "Audit events written to the fallback log instead of the store",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "civictrust_audit_circuit_breaker_state",
			Help: "Audit store circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) incEmitted(category string) {
	if m != nil {
		m.Emitted.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incSampledOut() {
	if m != nil {
		m.SampledOut.Inc()
	}
}

func (m *Metrics) incPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) incFallback() {
	if m != nil {
		m.FallbackLogged.Inc()
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
		return
	}
	m.CircuitBreakerState.Set(0)
}
