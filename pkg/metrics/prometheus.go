package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal       *prometheus.CounterVec
	cacheOps           *prometheus.CounterVec
	droppedGames       *prometheus.CounterVec
	opportunitiesTotal *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	quotaRemaining     *prometheus.GaugeVec
	poolGauge          *prometheus.GaugeVec
	latency            *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbpull_fetches_total",
				Help: "Total number of upstream odds fetches",
			},
			[]string{"sport", "result"},
		),
		cacheOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbpull_cache_ops_total",
				Help: "Cache lookups by TTL class and result",
			},
			[]string{"class", "result"},
		),
		droppedGames: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbpull_dropped_records_total",
				Help: "Records discarded during normalization",
			},
			[]string{"reason"},
		),
		opportunitiesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbpull_opportunities_total",
				Help: "Arbitrage opportunities detected",
			},
			[]string{"sport"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		quotaRemaining: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbpull_quota_remaining",
				Help: "Remaining provider request budget",
			},
			[]string{"mode"},
		),
		poolGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbpull_pool_units",
				Help: "Calculation units per lifecycle state",
			},
			[]string{"state"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one upstream fetch attempt and its result.
func (r *Recorder) RecordFetch(sport, result string) {
	r.fetchesTotal.WithLabelValues(sport, result).Inc()
}

// RecordCacheOp records a cache lookup result for a TTL class.
func (r *Recorder) RecordCacheOp(class, result string) {
	r.cacheOps.WithLabelValues(class, result).Inc()
}

// RecordDroppedGames records records discarded during normalization.
func (r *Recorder) RecordDroppedGames(reason string, n int) {
	if n > 0 {
		r.droppedGames.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordOpportunities records detected opportunities for a sport.
func (r *Recorder) RecordOpportunities(sport string, n int) {
	if n > 0 {
		r.opportunitiesTotal.WithLabelValues(sport).Add(float64(n))
	}
}

// SetQuotaRemaining publishes the current request budget.
func (r *Recorder) SetQuotaRemaining(mode string, remaining int) {
	r.quotaRemaining.WithLabelValues(mode).Set(float64(remaining))
}

// SetPoolGauge publishes the unit count for one pool state.
func (r *Recorder) SetPoolGauge(state string, n int) {
	r.poolGauge.WithLabelValues(state).Set(float64(n))
}

// ObserveLatency records operation latency.
func (r *Recorder) ObserveLatency(operation string, d time.Duration) {
	r.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(errType string) {
	r.errorsTotal.WithLabelValues(errType).Inc()
}
