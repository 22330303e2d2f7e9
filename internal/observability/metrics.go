package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the batch jobs.
type Metrics struct {
	JobRuns         *prometheus.CounterVec // labels: job, outcome={success,failure}
	JobLastSuccess  *prometheus.GaugeVec   // labels: job; unix seconds
	PipelineRunning prometheus.Gauge

	// Row accounting per transformation stage.
	StageRows     *prometheus.CounterVec   // labels: stage, result={in,dropped,out}
	StageDuration *prometheus.HistogramVec // labels: stage

	// Clustering metrics.
	ClusterFits *prometheus.CounterVec // labels: cluster

	// Sink metrics.
	SinkRows *prometheus.CounterVec // labels: sink, table

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: provider, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immo",
			Name:      "job_runs_total",
			Help:      "Batch job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "immo",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "immo",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline loop is active, 0 when shut down.",
		}),
		StageRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immo",
			Name:      "stage_rows_total",
			Help:      "Rows entering, dropped by, and leaving each transformation stage.",
		}, []string{"stage", "result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "immo",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each transformation stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"stage"}),
		ClusterFits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immo",
			Name:      "cluster_fits_total",
			Help:      "K-means fits by cluster sweep name.",
		}, []string{"cluster"}),
		SinkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immo",
			Name:      "sink_rows_total",
			Help:      "Rows written by sink and table.",
		}, []string{"sink", "table"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immo",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immo",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "immo",
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
	}

	prometheus.MustRegister(
		m.JobRuns,
		m.JobLastSuccess,
		m.PipelineRunning,
		m.StageRows,
		m.StageDuration,
		m.ClusterFits,
		m.SinkRows,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		JobRuns:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "immo", Name: "job_runs_total"}, []string{"job", "outcome"}),
		JobLastSuccess:     prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "immo", Name: "job_last_success_timestamp_seconds"}, []string{"job"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "immo", Name: "pipeline_running"}),
		StageRows:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "immo", Name: "stage_rows_total"}, []string{"stage", "result"}),
		StageDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "immo", Name: "stage_duration_seconds"}, []string{"stage"}),
		ClusterFits:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "immo", Name: "cluster_fits_total"}, []string{"cluster"}),
		SinkRows:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "immo", Name: "sink_rows_total"}, []string{"sink", "table"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "immo", Name: "geocode_requests_total"}, []string{"provider", "outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "immo", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "immo", Name: "geocode_api_duration_seconds"}, []string{"provider"}),
	}
}

// ObserveStage records row accounting for one transformation stage.
func (m *Metrics) ObserveStage(stage string, in, out int, seconds float64) {
	m.StageRows.WithLabelValues(stage, "in").Add(float64(in))
	m.StageRows.WithLabelValues(stage, "out").Add(float64(out))
	if in > out {
		m.StageRows.WithLabelValues(stage, "dropped").Add(float64(in - out))
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}
