package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts privilege resolutions.
type Metrics struct {
	Resolutions         *prometheus.CounterVec
	DegradedResolutions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_privilege_resolutions_total",
			Help: "Privilege resolutions by role",
		}, []string{"role"}),
		DegradedResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_privilege_degraded_resolutions_total",
			Help: "Resolutions that produced the degraded posture, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncResolution(role string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(role).Inc()
}

func (m *Metrics) IncDegraded(reason string) {
	if m == nil {
		return
	}
	m.DegradedResolutions.WithLabelValues(reason).Inc()
}
