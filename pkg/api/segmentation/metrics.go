package segmentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentation_rebuilds_total",
		Help: "Tree rebuilds by fact source",
	}, []string{"source"})

	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segmentation_rebuild_duration_seconds",
		Help:    "Time to normalize, aggregate and assemble a tree",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
	})

	treeNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segmentation_tree_nodes",
		Help:    "Node count of rebuilt trees",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	})

	factsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentation_facts_rejected_total",
		Help: "Raw facts dropped by the normalizer, by reason",
	}, []string{"reason"})

	navigationOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentation_navigation_total",
		Help: "Navigation operations by kind",
	}, []string{"op"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "segmentation_sessions_active",
		Help: "Live engine sessions",
	})
)
