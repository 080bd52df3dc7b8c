package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deltasApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jewelshop",
		Subsystem: "ledger",
		Name:      "deltas_applied_total",
		Help:      "Balance changes committed, by source.",
	}, []string{"source"})

	lockRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jewelshop",
		Subsystem: "ledger",
		Name:      "optimistic_retries_total",
		Help:      "Transactions retried after a version mismatch or key race.",
	})

	conflictsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jewelshop",
		Subsystem: "ledger",
		Name:      "conflicts_exhausted_total",
		Help:      "Transactions abandoned after the retry budget ran out.",
	})

	txDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jewelshop",
		Subsystem: "ledger",
		Name:      "transaction_duration_seconds",
		Help:      "Wall time of ledger transactions including retries.",
		Buckets:   prometheus.DefBuckets,
	})
)
