package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the signature pool lifecycle.
type Metrics struct {
	Ingests          *prometheus.CounterVec
	Endorsements     *prometheus.CounterVec
	Seals            *prometheus.CounterVec
	SealRetries      prometheus.Counter
	SealsScheduled   prometheus.Counter
	AnnounceFailures prometheus.Counter
	SealDuration     prometheus.Histogram
	SealedLeafCount  prometheus.Histogram
	PoolWeightOnSeal prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Ingests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_pool_ingests_total",
			Help: "Signature ingest attempts by outcome",
		}, []string{"outcome"}),
		Endorsements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_endorsements_total",
			Help: "Endorsement requests by outcome",
		}, []string{"outcome"}),
		Seals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrust_pool_seals_total",
			Help: "Seal attempts by outcome",
		}, []string{"outcome"}),
		SealRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_pool_seal_retries_total",
			Help: "Seals recomputed because a signature landed first",
		}),
		SealsScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_pool_seals_scheduled_total",
			Help: "Seals queued after a pool reached quorum",
		}),
		AnnounceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "civictrust_pool_seal_announce_failures_total",
			Help: "Sealed pools whose announcement could not be published",
		}),
		SealDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "civictrust_pool_seal_duration_seconds",
			Help:    "Time to hash and commit a seal",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SealedLeafCount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "civictrust_pool_sealed_leaf_count",
			Help:    "Signatures per sealed pool",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		PoolWeightOnSeal: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "civictrust_pool_sealed_total_weight",
			Help:    "Total weight of pools at seal time",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

func (m *Metrics) IncIngest(outcome string) {
	if m != nil {
		m.Ingests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncEndorsement(outcome string) {
	if m != nil {
		m.Endorsements.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncSeal(outcome string) {
	if m != nil {
		m.Seals.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncSealRetry() {
	if m != nil {
		m.SealRetries.Inc()
	}
}

func (m *Metrics) IncSealScheduled() {
	if m != nil {
		m.SealsScheduled.Inc()
	}
}

func (m *Metrics) IncAnnounceFailure() {
	if m != nil {
		m.AnnounceFailures.Inc()
	}
}

// ObserveSeal records a committed seal.
func (m *Metrics) ObserveSeal(start time.Time, leafCount, totalWeight int) {
	if m == nil {
		return
	}
	m.SealDuration.Observe(time.Since(start).Seconds())
	m.SealedLeafCount.Observe(float64(leafCount))
	m.PoolWeightOnSeal.Observe(float64(totalWeight))
}
