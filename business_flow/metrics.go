package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Allocation outcomes recorded in the result label
const (
	resultSuccess     = "success"
	resultInvalidName = "invalid_name"
	resultUnavailable = "storage_unavailable"
	resultConflict    = "conflict"
)

var (
	// Allocations partitioned by counter and outcome
	sequenceAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_allocations_total",
			Help: "Total number of sequence allocation attempts",
		},
		[]string{"counter", "result"},
	)

	// Store round trip latency of successful and failed allocations
	sequenceAllocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sequence_allocation_duration_seconds",
			Help:    "Sequence allocation latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"counter"},
	)
)
