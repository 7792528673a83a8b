package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsProcessedTotal,
		jobDurationSeconds,
		jobClaimErrorsTotal,
		staleJobsRequeuedTotal,
	)
}

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgms_jobs_processed_total",
			Help: "Jobs finalized by the consumer, labeled by type and resulting status.",
		},
		[]string{"job_type", "status"}, // status: 'completed', 'pending', 'failed'
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tgms_job_duration_seconds",
			Help:    "Time spent dispatching a claimed job.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"job_type"},
	)

	jobClaimErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tgms_job_claim_errors_total",
			Help: "Store errors raised while claiming or finalizing jobs.",
		},
	)

	staleJobsRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tgms_stale_jobs_requeued_total",
			Help: "Processing jobs moved back to pending after their lease expired.",
		},
	)
)

func IncJobProcessed(jobType, status string) {
	jobsProcessedTotal.WithLabelValues(norm(jobType), norm(status)).Inc()
}

func ObserveJobDuration(jobType string, d time.Duration) {
	jobDurationSeconds.WithLabelValues(norm(jobType)).Observe(d.Seconds())
}

func IncJobClaimError() {
	jobClaimErrorsTotal.Inc()
}

func AddStaleJobsRequeued(n int) {
	staleJobsRequeuedTotal.Add(float64(n))
}
