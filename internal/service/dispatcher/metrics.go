package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_webhook_flushes_total",
			Help: "Webhook batch deliveries by result",
		},
		[]string{"result"},
	)

	deliveredPaths = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_webhook_delivered_paths_total",
			Help: "Changed paths successfully delivered downstream",
		},
	)

	deadLetteredPaths = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_webhook_dead_lettered_total",
			Help: "Changed paths dropped to the dead-letter sink",
		},
	)

	pendingPaths = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_webhook_pending_paths",
			Help: "Changed paths waiting for the next flush",
		},
	)
)
