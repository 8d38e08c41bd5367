package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_sweep_runs_total",
			Help: "Number of reconciliation sweeps by result",
		},
		[]string{"result"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_sweep_duration_seconds",
			Help:    "Duration of completed reconciliation sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	sweepChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_sweep_changes_total",
			Help: "Item changes applied by reconciliation sweeps",
		},
		[]string{"kind"},
	)
)
