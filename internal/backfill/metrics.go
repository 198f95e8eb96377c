package backfill

import "github.com/prometheus/client_golang/prometheus"

var (
	// attemptsTotal counts translation attempts by result:
	// ok, short, empty, patch_error.
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "joingroups",
			Subsystem: "backfill",
			Name:      "attempts_total",
			Help:      "Translation back-fill attempts by result.",
		},
		[]string{"result"},
	)

	// jobsTotal counts finished jobs by outcome.
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "joingroups",
			Subsystem: "backfill",
			Name:      "jobs_total",
			Help:      "Finished translation back-fill jobs by outcome.",
		},
		[]string{"outcome"},
	)

	// jobsRunning gauges jobs currently looping.
	jobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "joingroups",
			Subsystem: "backfill",
			Name:      "jobs_running",
			Help:      "Translation back-fill jobs currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(attemptsTotal, jobsTotal, jobsRunning)
}
