package jobs

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "portal"
	metricsSubsystem = "job"
)

var (
	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "runs_total",
		Help:      "Background job runs, including skipped ones.",
	}, []string{"job"})

	jobErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "errors_total",
		Help:      "Background job runs that failed or panicked.",
	}, []string{"job"})

	jobSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "skipped_total",
		Help:      "Background job runs skipped because the remote store was not ready.",
	}, []string{"job"})

	jobLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run.",
	}, []string{"job"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "duration_seconds",
		Help:      "Background job duration in seconds.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobSkipped, jobLastSuccess, jobDuration)
}
