package indexer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsBucketsSeconds mirrors the teacher's util.MetricsBucketsSeconds: a
// bucket set sized for sub-second to multi-second operations, the range a
// single block's processing time falls into.
var metricsBucketsSeconds = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

var (
	prometheusIndexerBlocksProcessed prometheus.Counter
	prometheusIndexerBlocksReorged   prometheus.Counter
	prometheusIndexerOpsFound        prometheus.Counter
	prometheusIndexerOpsValid        prometheus.Counter
	prometheusIndexerProcessBlock    prometheus.Histogram
)

var prometheusIndexerMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusIndexerMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusIndexerBlocksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brc20indexer",
			Subsystem: "pipeline",
			Name:      "blocks_processed",
			Help:      "Number of blocks committed by ProcessBlock",
		},
	)

	prometheusIndexerBlocksReorged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brc20indexer",
			Subsystem: "pipeline",
			Name:      "blocks_reorged",
			Help:      "Number of times ProcessBlock detected and rolled back a reorg",
		},
	)

	prometheusIndexerOpsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brc20indexer",
			Subsystem: "pipeline",
			Name:      "ops_found",
			Help:      "Number of unspendable-data payloads extracted across all processed blocks",
		},
	)

	prometheusIndexerOpsValid = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brc20indexer",
			Subsystem: "pipeline",
			Name:      "ops_valid",
			Help:      "Number of operations that passed validation and mutated state",
		},
	)

	prometheusIndexerProcessBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "brc20indexer",
			Subsystem: "pipeline",
			Name:      "process_block_seconds",
			Help:      "Time spent in one ProcessBlock call",
			Buckets:   metricsBucketsSeconds,
		},
	)
}
