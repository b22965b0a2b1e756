package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "traillog", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "traillog", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "traillog", Name: "store_operations_total", Help: "Document store operations by collection, operation and outcome."},
		[]string{"collection", "op", "outcome"},
	)
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "traillog", Name: "store_operation_duration_seconds", Help: "MongoDB operation latency by collection and operation.", Buckets: prometheus.DefBuckets},
		[]string{"collection", "op"},
	)
	MigrationDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "traillog", Name: "migration_modified_documents_total", Help: "Documents modified by schema auto-migration, by collection and step."},
		[]string{"collection", "step"},
	)
	MigrationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "traillog", Name: "migration_failures_total", Help: "Failed migration directives by collection and step."},
		[]string{"collection", "step"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(StoreOperations)
	reg.MustRegister(StoreLatency)
	reg.MustRegister(MigrationDocuments)
	reg.MustRegister(MigrationFailures)
}
