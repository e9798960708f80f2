package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing pipeline Prometheus metrics.
var (
	IndexJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexibase",
			Name:      "index_jobs_total",
			Help:      "Index job attempt outcomes",
		},
		[]string{"outcome"}, // "indexed" / "retried" / "failed" / "skipped"
	)

	IndexJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lexibase",
			Name:      "index_job_duration_seconds",
			Help:      "Time spent processing one index job attempt",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lexibase",
			Name:      "queue_depth",
			Help:      "Number of messages waiting in a queue channel",
		},
		[]string{"channel"},
	)

	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lexibase",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently leased by workers",
		},
	)

	SweeperDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexibase",
			Name:      "sweeper_deleted_jobs_total",
			Help:      "Indexed jobs removed by the retention sweeper",
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexibase",
			Name:      "search_requests_total",
			Help:      "Total number of semantic search requests",
		},
		[]string{"status"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexJobsTotal)
	prometheus.MustRegister(IndexJobDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsInFlight)
	prometheus.MustRegister(SweeperDeletedTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	pipelineMetricsRegistered = true
}
