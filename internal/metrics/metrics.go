// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Validation failure kinds.
const (
	FailureConfig    = "config"
	FailureAggregate = "aggregate"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them for tests.
type Recorder interface {
	// Report cache metrics
	IncReportCacheHit()
	IncReportCacheMiss()

	// Report build metrics
	IncReportBuilt()
	IncReportShared()
	ObserveReportBuildDuration(duration time.Duration)
	ObserveAggregateCount(count int)

	// Failures
	IncValidationFailure(kind string) // kind: FailureConfig or FailureAggregate
	IncSourceError()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
