// Package metrics exposes Prometheus instrumentation for the workflow
// engine. Collectors register against the default registry; binaries serve
// them with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsApplied counts successfully applied transitions by workflow type.
	TransitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageflow_transitions_applied_total",
		Help: "Number of ticket transitions successfully applied.",
	}, []string{"workflow_type"})

	// TransitionsRejected counts validation rejections by reason.
	TransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageflow_transitions_rejected_total",
		Help: "Number of ticket transitions rejected by the validator.",
	}, []string{"reason"})

	// AutoTransitionDepth observes how many rule-driven stage changes a
	// single apply performed. A distribution leaning on the recursion bound
	// points at an authoring problem.
	AutoTransitionDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stageflow_auto_transition_depth",
		Help:    "Chained automatic stage changes per transition application.",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	// SLAStatuses counts ticket SLA statuses observed by the sweep.
	SLAStatuses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageflow_sla_scan_statuses_total",
		Help: "SLA statuses observed during periodic sweeps.",
	}, []string{"status"})

	// SweepDuration observes the wall time of one SLA sweep.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stageflow_sla_sweep_duration_seconds",
		Help:    "Duration of SLA sweep runs.",
		Buckets: prometheus.DefBuckets,
	})
)
