// Package metrics provides Prometheus metrics for scrub runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row stages.
const (
	StageInput     = "input"
	StageBlacklist = "removed_blacklist"
	StageSales     = "removed_sales"
	StageOutput    = "output"
)

var (
	// RunsTotal tracks pipeline runs by outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scrub",
			Name:      "runs_total",
			Help:      "Total number of scrub runs by status",
		},
		[]string{"status"},
	)

	// RowsTotal tracks rows seen per pipeline stage
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scrub",
			Name:      "rows_total",
			Help:      "Rows read, removed and written by scrub runs",
		},
		[]string{"stage"},
	)

	// RunDuration tracks end-to-end run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scrub",
			Name:      "run_duration_seconds",
			Help:      "Duration of scrub runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"policy"},
	)
)

// Counts is what a finished run reports.
type Counts struct {
	Input, RemovedBlacklist, RemovedSales, Output int
}

// ObserveRun records a successful run.
func ObserveRun(policy string, c Counts, took time.Duration) {
	RunsTotal.WithLabelValues("success").Inc()
	RowsTotal.WithLabelValues(StageInput).Add(float64(c.Input))
	RowsTotal.WithLabelValues(StageBlacklist).Add(float64(c.RemovedBlacklist))
	RowsTotal.WithLabelValues(StageSales).Add(float64(c.RemovedSales))
	RowsTotal.WithLabelValues(StageOutput).Add(float64(c.Output))
	RunDuration.WithLabelValues(policy).Observe(took.Seconds())
}

// ObserveFailure records a run rejected by config or schema validation, or one that failed on I/O.
func ObserveFailure(status string) {
	RunsTotal.WithLabelValues(status).Inc()
}
