package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for opsgate.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActionsTotal    *prometheus.CounterVec
	AuthDenials     prometheus.Counter
	CacheEntries    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opsgate",
				Name:      "requests_total",
				Help:      "Total number of API requests processed",
			},
			[]string{"path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "opsgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		ActionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opsgate",
				Name:      "actions_total",
				Help:      "Total action submissions by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome=executed/rejected/failed
		),
		AuthDenials: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "opsgate",
				Name:      "auth_denials_total",
				Help:      "Total authorization denials",
			},
		),
		CacheEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "opsgate",
				Name:      "insight_cache_entries",
				Help:      "Resident insight cache entries, expired included",
			},
		),
	}
}
