// Package metrics exports Prometheus metrics for report task runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adnreport"

// Metrics holds the connector's Prometheus collectors.
type Metrics struct {
	TasksTotal           *prometheus.CounterVec
	TaskDuration         prometheus.Histogram
	StepErrors           *prometheus.CounterVec
	RawRowsLoaded        prometheus.Counter
	LinkedRows           prometheus.Counter
	LinkedGroupsDropped  prometheus.Counter
	ArchiveFailures      prometheus.Counter
	DispatchedTasksTotal prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Report task runs by final status.",
		}, []string{"status"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of report task runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Pipeline step errors by kind.",
		}, []string{"kind"}),
		RawRowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_rows_loaded_total",
			Help:      "Raw report rows inserted.",
		}),
		LinkedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "linked_rows_total",
			Help:      "Linked report rows written.",
		}),
		LinkedGroupsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "linked_groups_dropped_total",
			Help:      "Aggregated report groups whose key matched no instance.",
		}),
		ArchiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Raw payload archive uploads that failed.",
		}),
		DispatchedTasksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_tasks_total",
			Help:      "Tasks picked up by the dispatcher.",
		}),
	}
}

// NewNop returns metrics registered with a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
