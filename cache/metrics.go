package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors TwoTier reports into. All methods
// are safe on a nil receiver, so an unconfigured cache records nothing.
type Metrics struct {
	hits            *prometheus.CounterVec
	misses          *prometheus.CounterVec
	promotions      *prometheus.CounterVec
	partialFailures *prometheus.CounterVec
	opDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the cache collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by tier.",
		}, []string{"cache", "tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Overall cache misses (absent from every tier).",
		}, []string{"cache"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_promotions_total",
			Help: "Slow-tier values copied into the fast tier.",
		}, []string{"cache", "result"}),
		partialFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_partial_failures_total",
			Help: "Dual-write operations where exactly one tier failed.",
		}, []string{"cache", "operation"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_backend_operation_duration_seconds",
			Help:    "Latency of individual backend operations.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		}, []string{"cache", "tier", "operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.promotions, m.partialFailures, m.opDuration)
	}
	return m
}

func (m *Metrics) hit(cache, tier string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(cache, tier).Inc()
}

func (m *Metrics) miss(cache string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(cache).Inc()
}

func (m *Metrics) promotion(cache string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.promotions.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) partialFailure(cache, operation string) {
	if m == nil {
		return
	}
	m.partialFailures.WithLabelValues(cache, operation).Inc()
}

func (m *Metrics) observe(cache, tier, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(cache, tier, operation).Observe(d.Seconds())
}
