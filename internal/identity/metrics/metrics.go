package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks standing changes applied through the identity service.
type Metrics struct {
	ImpactsApplied      *prometheus.CounterVec
	ConfigurationGaps   prometheus.Counter
	Sanctioned          prometheus.Counter
	CASRetries          prometheus.Counter
	ApplyImpactDuration prometheus.Histogram
}

// New registers identity metrics against reg (default registerer if nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ImpactsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_impacts_applied_total",
			Help: "Impact events applied to citizen standing by impact type",
		}, []string{"impact_type"}),
		ConfigurationGaps: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_impact_configuration_gaps_total",
			Help: "Impact events whose type has no registered weight",
		}),
		Sanctioned: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_citizens_sanctioned_total",
			Help: "Standing changes that pushed a citizen below the sanction threshold",
		}),
		CASRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_standing_cas_retries_total",
			Help: "Standing updates retried after a concurrent writer won",
		}),
		ApplyImpactDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "civictrust_apply_impact_duration_seconds",
			Help:    "Duration of persisted ApplyImpact operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncImpactApplied(impactType string) {
	if m != nil {
		m.ImpactsApplied.WithLabelValues(impactType).Inc()
	}
}

func (m *Metrics) IncConfigurationGap() {
	if m != nil {
		m.ConfigurationGaps.Inc()
	}
}

func (m *Metrics) IncSanctioned() {
	if m != nil {
		m.Sanctioned.Inc()
	}
}

func (m *Metrics) IncCASRetry() {
	if m != nil {
		m.CASRetries.Inc()
	}
}

// ObserveApplyImpact records the duration since start.
func (m *Metrics) ObserveApplyImpact(start time.Time) {
	if m != nil {
		m.ApplyImpactDuration.Observe(time.Since(start).Seconds())
	}
}
