package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the application exposes on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AcquisitionsTotal  *prometheus.CounterVec
	AcquisitionSeconds prometheus.Histogram
	PipelineRunsTotal  *prometheus.CounterVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
}

// NewMetrics creates a dedicated registry with all application collectors
// registered. A dedicated registry keeps test instances isolated from the
// default global one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twpulse_http_requests_total",
			Help: "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twpulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AcquisitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twpulse_acquisitions_total",
			Help: "Price matrix acquisitions by outcome (success, failure).",
		}, []string{"outcome"}),
		AcquisitionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "twpulse_acquisition_duration_seconds",
			Help:    "Wall time of a full universe price fetch.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twpulse_pipeline_runs_total",
			Help: "Corruption/repair/statistics pipeline runs by outcome.",
		}, []string{"outcome"}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "twpulse_load_cache_hits_total",
			Help: "Memoized load results served from cache.",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "twpulse_load_cache_misses_total",
			Help: "Load requests that had to hit the data source.",
		}),
	}
}
