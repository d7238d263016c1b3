package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsTotal,
		jobDuration,
		fetchFailures,
		extractions,
		artifactsTotal,
	)
}

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescout_jobs_total",
			Help: "Jobs that reached a terminal state, by kind and status.",
		},
		[]string{"kind", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablescout_job_duration_seconds",
			Help:    "Wall time from job start to terminal state.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"kind", "status"},
	)

	fetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescout_fetch_failures_total",
			Help: "Rejected document downloads, by reason.",
		},
		[]string{"reason"},
	)

	extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescout_extractions_total",
			Help: "Extraction attempts, by result.",
		},
		[]string{"result"},
	)

	artifactsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescout_artifacts_total",
			Help: "Tables extracted across all jobs.",
		},
	)
)

// JobFinished records a job reaching a terminal state
func JobFinished(kind, status string, elapsed time.Duration) {
	jobsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
	jobDuration.WithLabelValues(norm(kind), norm(status)).Observe(elapsed.Seconds())
}

// FetchFailed records a rejected download
func FetchFailed(reason string) {
	fetchFailures.WithLabelValues(norm(reason)).Inc()
}

// ExtractionDone records one extraction attempt
func ExtractionDone(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	extractions.WithLabelValues(result).Inc()
}

// ArtifactsAdded records newly extracted tables
func ArtifactsAdded(n int) {
	if n > 0 {
		artifactsTotal.Add(float64(n))
	}
}

func norm(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return "unknown"
	}
	return label
}
