package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncReportCacheHit is a no-op.
func (n *NoopRecorder) IncReportCacheHit() {}

// IncReportCacheMiss is a no-op.
func (n *NoopRecorder) IncReportCacheMiss() {}

// IncReportBuilt is a no-op.
func (n *NoopRecorder) IncReportBuilt() {}

// IncReportShared is a no-op.
func (n *NoopRecorder) IncReportShared() {}

// ObserveReportBuildDuration is a no-op.
func (n *NoopRecorder) ObserveReportBuildDuration(duration time.Duration) {}

// ObserveAggregateCount is a no-op.
func (n *NoopRecorder) ObserveAggregateCount(count int) {}

// IncValidationFailure is a no-op.
func (n *NoopRecorder) IncValidationFailure(kind string) {}

// IncSourceError is a no-op.
func (n *NoopRecorder) IncSourceError() {}
