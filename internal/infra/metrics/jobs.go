package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsProcessedTotal, jobsAdmittedTotal, jobsRejectedTotal, jobDurationSeconds)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_processed_total",
		Help: "Total number of generation jobs processed, labeled by kind and status.",
	},
	[]string{"kind", "status"}, // 'completed', 'failed'
)

var jobsAdmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_admitted_total",
		Help: "Total number of jobs admitted to the queue, labeled by kind.",
	},
	[]string{"kind"},
)

var jobsRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_rejected_total",
		Help: "Total number of admissions rejected by the queue-size cap.",
	},
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_job_duration_seconds",
		Help:    "Wall-clock processing duration of finished jobs.",
		Buckets: []float64{10, 30, 60, 90, 120, 180, 240, 300, 450, 600},
	},
	[]string{"kind"},
)

func IncJobProcessed(kind, status string) {
	jobsProcessedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncJobAdmitted(kind string) {
	jobsAdmittedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobRejected() { jobsRejectedTotal.Inc() }

func ObserveJobDuration(kind string, seconds float64) {
	jobDurationSeconds.WithLabelValues(norm(kind)).Observe(seconds)
}
