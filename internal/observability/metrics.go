package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	submissionsTotal     *prometheus.CounterVec
	batchDurationSeconds *prometheus.HistogramVec
	activeBatches        prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the grader.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_api_requests_total",
			Help: "Total number of grader API requests served.",
		}, []string{"method", "resource", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_api_latency_seconds",
			Help:    "Latency distribution for grader API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 10.0, 60.0},
		}, []string{"method", "resource"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_api_errors_total",
			Help: "Total number of error responses returned by the grader API.",
		}, []string{"method", "resource", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_submissions_total",
			Help: "Total number of recorded submission evaluations by status.",
		}, []string{"status"})

		batchDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_batch_duration_seconds",
			Help:    "Wall-clock duration of evaluation batches.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"outcome"})

		activeBatches = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grader_active_batches",
			Help: "Number of evaluation batches currently running.",
		})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, apiErrorsTotal, submissionsTotal, batchDurationSeconds, activeBatches)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Submissions exposes the counter of recorded evaluations.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// BatchDuration exposes the batch duration histogram.
func BatchDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return batchDurationSeconds
}

// ActiveBatches exposes the running batch gauge.
func ActiveBatches() prometheus.Gauge {
	RegisterMetrics()
	return activeBatches
}
