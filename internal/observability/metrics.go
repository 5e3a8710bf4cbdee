// Package observability holds the Prometheus metrics shared by the pipelines,
// the scheduler and the HTTP surface.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seawatch"

// Metrics holds the Prometheus counters, histograms, and gauges for seawatch.
type Metrics struct {
	// Port buffer pipeline.
	PortsSelected      prometheus.Counter
	PortBuffersUpdated prometheus.Counter
	PortBufferFailures *prometheus.CounterVec // labels: stage={geometry,persistence}

	// Position ingestion pipeline.
	PositionsIngested   *prometheus.CounterVec // labels: provider
	IngestionFailures   *prometheus.CounterVec // labels: provider, stage={registry,fetch,normalize,persistence}
	VesselSeedFallbacks prometheus.Counter

	// Scheduler.
	JobRuns     *prometheus.CounterVec   // labels: job, outcome={success,error}
	JobDuration *prometheus.HistogramVec // labels: job
	JobRunning  *prometheus.GaugeVec     // labels: job

	// HTTP surface.
	HTTPRequests        *prometheus.CounterVec   // labels: method, route, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, route
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.PortsSelected,
		m.PortBuffersUpdated,
		m.PortBufferFailures,
		m.PositionsIngested,
		m.IngestionFailures,
		m.VesselSeedFallbacks,
		m.JobRuns,
		m.JobDuration,
		m.JobRunning,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PortsSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_buffer_ports_selected_total",
			Help:      "Ports found without a geometry buffer.",
		}),
		PortBuffersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_buffer_updated_total",
			Help:      "Port buffers written by a committed update.",
		}),
		PortBufferFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_buffer_failures_total",
			Help:      "Port buffer runs that failed, by stage.",
		}, []string{"stage"}),
		PositionsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_ingested_total",
			Help:      "Vessel positions appended to the store, by provider.",
		}, []string{"provider"}),
		IngestionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_failures_total",
			Help:      "Failed ingestion cycles by provider and stage.",
		}, []string{"provider", "stage"}),
		VesselSeedFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vessel_seed_fallbacks_total",
			Help:      "Ingestion cycles that read vessels from the seed file.",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of a job run in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		JobRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while a job run is in progress.",
		}, []string{"job"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
