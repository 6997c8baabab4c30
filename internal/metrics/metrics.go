// Package metrics exposes the Prometheus instrumentation surface for the
// chain core: ingestion outcomes and pool occupancy. Non-goals exclude
// incentive economics and gossip flood control, not observability, so
// this instrumentation is carried regardless of scope trimming elsewhere.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestOutcomes counts Insert results by outcome: admitted, duplicate,
// future_height, future_time, miss_parent, malformed.
var IngestOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sleepycore",
	Subsystem: "chain",
	Name:      "ingest_outcomes_total",
	Help:      "Count of block ingestion attempts by outcome.",
}, []string{"outcome"})

// PoolSize tracks the current number of transactions admitted to the pool.
var PoolSize = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sleepycore",
	Subsystem: "mempool",
	Name:      "pool_size",
	Help:      "Number of transactions currently admitted to the pool.",
})

// PoolRejected counts transactions rejected by the pool's dedup filter.
var PoolRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sleepycore",
	Subsystem: "mempool",
	Name:      "pool_rejected_total",
	Help:      "Count of transactions rejected by the dedup filter.",
})

// Outcome label values for IngestOutcomes.
const (
	OutcomeAdmitted     = "admitted"
	OutcomeDuplicate    = "duplicate"
	OutcomeFutureHeight = "future_height"
	OutcomeFutureTime   = "future_time"
	OutcomeMissParent   = "miss_parent"
	OutcomeMalformed    = "malformed"
)

// Observe records a single ingestion outcome.
func Observe(outcome string) {
	IngestOutcomes.WithLabelValues(outcome).Inc()
}
