package executor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/makeasinger/compute-worker/internal/model"
)

// Metric label values for task status.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// Metric label values for the lifecycle channel that reported a system fault.
const (
	channelFatal     = "fatal"
	channelRejection = "rejection"
)

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compute_worker_tasks_total",
			Help: "Total number of tasks that reached a terminal response.",
		},
		[]string{"command", "status"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compute_worker_task_duration_seconds",
			Help:    "Time from dispatch to terminal response, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	progressMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compute_worker_progress_messages_total",
			Help: "Total number of progress responses emitted.",
		},
		[]string{"command"},
	)

	activeSimulations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "compute_worker_active_simulations",
			Help: "Number of simulateWork tasks currently stepping.",
		},
	)

	systemFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compute_worker_system_faults_total",
			Help: "Total number of failures reported outside any request.",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(progressMessages)
	prometheus.MustRegister(activeSimulations)
	prometheus.MustRegister(systemFaults)

	for _, c := range model.Commands {
		tasksTotal.WithLabelValues(string(c), statusSucceeded)
		tasksTotal.WithLabelValues(string(c), statusFailed)
	}
	systemFaults.WithLabelValues(channelFatal)
	systemFaults.WithLabelValues(channelRejection)
}

// commandLabel keeps label cardinality bounded when hosts send arbitrary
// command names.
func commandLabel(c model.Command) string {
	if !c.Valid() {
		return model.FallbackID
	}
	return string(c)
}
