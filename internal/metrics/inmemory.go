package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ReportCacheHits      uint64
	ReportCacheMisses    uint64
	ReportsBuilt         uint64
	ReportsShared        uint64
	BuildDurationCount   uint64
	BuildDurationTotalNs int64
	AggregatesObserved   uint64
	ConfigFailures       uint64
	AggregateFailures    uint64
	SourceErrors         uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	reportCacheHits      uint64
	reportCacheMisses    uint64
	reportsBuilt         uint64
	reportsShared        uint64
	buildDurationCount   uint64
	buildDurationTotalNs int64
	aggregatesObserved   uint64
	configFailures       uint64
	aggregateFailures    uint64
	sourceErrors         uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		ReportCacheHits:      atomic.LoadUint64(&m.reportCacheHits),
		ReportCacheMisses:    atomic.LoadUint64(&m.reportCacheMisses),
		ReportsBuilt:         atomic.LoadUint64(&m.reportsBuilt),
		ReportsShared:        atomic.LoadUint64(&m.reportsShared),
		BuildDurationCount:   atomic.LoadUint64(&m.buildDurationCount),
		BuildDurationTotalNs: atomic.LoadInt64(&m.buildDurationTotalNs),
		AggregatesObserved:   atomic.LoadUint64(&m.aggregatesObserved),
		ConfigFailures:       atomic.LoadUint64(&m.configFailures),
		AggregateFailures:    atomic.LoadUint64(&m.aggregateFailures),
		SourceErrors:         atomic.LoadUint64(&m.sourceErrors),
	}
}

// IncReportCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncReportCacheHit() {
	atomic.AddUint64(&m.reportCacheHits, 1)
}

// IncReportCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncReportCacheMiss() {
	atomic.AddUint64(&m.reportCacheMisses, 1)
}

// IncReportBuilt increments the built report counter.
func (m *InMemoryRecorder) IncReportBuilt() {
	atomic.AddUint64(&m.reportsBuilt, 1)
}

// IncReportShared counts callers served by another caller's in-flight build.
func (m *InMemoryRecorder) IncReportShared() {
	atomic.AddUint64(&m.reportsShared, 1)
}

// ObserveReportBuildDuration records build duration.
func (m *InMemoryRecorder) ObserveReportBuildDuration(duration time.Duration) {
	atomic.AddUint64(&m.buildDurationCount, 1)
	atomic.AddInt64(&m.buildDurationTotalNs, duration.Nanoseconds())
}

// ObserveAggregateCount adds the size of a loaded batch.
func (m *InMemoryRecorder) ObserveAggregateCount(count int) {
	atomic.AddUint64(&m.aggregatesObserved, uint64(count))
}

// IncValidationFailure increments the counter for kind.
func (m *InMemoryRecorder) IncValidationFailure(kind string) {
	if kind == FailureConfig {
		atomic.AddUint64(&m.configFailures, 1)
		return
	}
	atomic.AddUint64(&m.aggregateFailures, 1)
}

// IncSourceError increments the source error counter.
func (m *InMemoryRecorder) IncSourceError() {
	atomic.AddUint64(&m.sourceErrors, 1)
}
