package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding job Prometheus metrics.
var (
	JobTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photodex",
			Name:      "job_transitions_total",
			Help:      "Image status transitions performed by the job runner",
		},
		[]string{"state"},
	)

	JobRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "photodex",
			Name:      "job_retries_total",
			Help:      "Embedding job attempts rescheduled after a failure",
		},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photodex",
			Name:      "job_duration_seconds",
			Help:      "Embedding job duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	QueueEnqueueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photodex",
			Name:      "queue_enqueue_total",
			Help:      "Embedding job enqueue attempts",
		},
		[]string{"driver", "result"}, // result: "ok" / "full" / "closed" / "error"
	)

	SweepImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photodex",
			Name:      "sweep_images_total",
			Help:      "Images re-enqueued by maintenance sweeps",
		},
		[]string{"sweep"}, // "retry_failed" / "requeue_pending" / "reclaim_stale" / "retry_one"
	)
)

var jobMetricsRegistered bool

// RegisterJobMetrics registers Prometheus job metrics. Must be called once from main.
func RegisterJobMetrics() {
	if jobMetricsRegistered {
		return
	}
	prometheus.MustRegister(JobTransitionsTotal)
	prometheus.MustRegister(JobRetriesTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(QueueEnqueueTotal)
	prometheus.MustRegister(SweepImagesTotal)
	jobMetricsRegistered = true
}
