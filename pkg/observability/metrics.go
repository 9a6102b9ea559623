package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// TasksTotal tracks the total number of partition tasks processed
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlc_tasks_total",
			Help: "Total number of partition tasks processed",
		},
		[]string{"run", "status"}, // status: success, failed
	)

	// TaskDuration measures partition task execution duration in seconds
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlc_task_duration_seconds",
			Help:    "Partition task execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"status"},
	)

	// RecordsScanned counts raw timeline records read from source files
	RecordsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tlc_records_scanned_total",
			Help: "Total number of timeline records read from source files",
		},
	)

	// TimelinesCompiled counts compilation outcomes
	TimelinesCompiled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlc_timelines_compiled_total",
			Help: "Total number of timeline compilations by outcome",
		},
		[]string{"status"}, // status: compiled, unreadable
	)

	// SnapshotsPerTimeline measures compiled snapshot counts
	SnapshotsPerTimeline = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlc_snapshots_per_timeline",
			Help:    "Number of snapshots per compiled timeline",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to ~4096
		},
	)

	// PartitionsPlanned tracks partitions enqueued by the last sweep per file
	PartitionsPlanned = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tlc_partitions_planned",
			Help: "Partitions enqueued for the most recent sweep of a file",
		},
		[]string{"file"},
	)

	// SweepDuration measures the time one ingest-directory sweep takes
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlc_sweep_duration_seconds",
			Help:    "Duration of one ingest directory sweep",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// ErrorsTotal counts internal errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlc_errors_total",
			Help: "Total number of internal errors",
		},
		[]string{"component", "kind"},
	)
)

// RecordTaskComplete records a finished partition task
func RecordTaskComplete(runID, status string, seconds float64) {
	TasksTotal.WithLabelValues(runID, status).Inc()
	TaskDuration.WithLabelValues(status).Observe(seconds)
}

// RecordTimeline records one compilation outcome
func RecordTimeline(status string, snapshots int) {
	TimelinesCompiled.WithLabelValues(status).Inc()

	if snapshots > 0 {
		SnapshotsPerTimeline.Observe(float64(snapshots))
	}
}

// RecordError records one internal error
func RecordError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}
