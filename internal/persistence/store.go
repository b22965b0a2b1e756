package persistence

import (
	"fmt"
	"time"

	"github.com/traillog/traillog/backend/go-services/pkg/logger"
	"github.com/traillog/traillog/backend/go-services/pkg/metrics"
)

// instrument is shared by store implementations: it counts operations and
// logs failures with enough context to diagnose them.
type instrument struct {
	collection string
}

func (i instrument) ok(op string) {
	metrics.StoreOperations.WithLabelValues(i.collection, op, "ok").Inc()
}

// observe records the latency of an operation started at start.
func (i instrument) observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(i.collection, op).Observe(time.Since(start).Seconds())
}

func (i instrument) fail(op, id, field string, err error) error {
	metrics.StoreOperations.WithLabelValues(i.collection, op, "error").Inc()
	logger.With(logger.Fields{
		"collection": i.collection,
		"op":         op,
		"id":         id,
		"field":      field,
	}).Errorf("store operation failed: %v", err)
	return &StoreError{Op: op, Collection: i.collection, ID: id, Field: field, Err: err}
}

func duplicateKey(err error) error {
	return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
}
