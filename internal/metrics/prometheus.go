package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "searchdemand"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	cacheLookups       *prometheus.CounterVec
	reportsBuilt       prometheus.Counter
	reportsShared      prometheus.Counter
	buildDuration      prometheus.Histogram
	aggregatesPerBatch prometheus.Histogram
	validationFailures *prometheus.CounterVec
	sourceErrors       prometheus.Counter
}

// NewPrometheus registers the report metrics with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_lookups_total",
				Help:      "Report cache lookups by result",
			},
			[]string{"result"},
		),
		reportsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_built_total",
			Help:      "Reports built by the engine",
		}),
		reportsShared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_shared_total",
			Help:      "Requests served by a concurrent identical build",
		}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_build_duration_seconds",
			Help:      "Time spent building a report from a validated batch",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		aggregatesPerBatch: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregates_per_batch",
			Help:      "Aggregates in each loaded batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Rejected window configurations and aggregate batches",
			},
			[]string{"kind"},
		),
		sourceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed loads from the aggregate source",
		}),
	}
}

func (p *PrometheusRecorder) IncReportCacheHit() {
	p.cacheLookups.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncReportCacheMiss() {
	p.cacheLookups.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) IncReportBuilt() {
	p.reportsBuilt.Inc()
}

func (p *PrometheusRecorder) IncReportShared() {
	p.reportsShared.Inc()
}

func (p *PrometheusRecorder) ObserveReportBuildDuration(duration time.Duration) {
	p.buildDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveAggregateCount(count int) {
	p.aggregatesPerBatch.Observe(float64(count))
}

func (p *PrometheusRecorder) IncValidationFailure(kind string) {
	p.validationFailures.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncSourceError() {
	p.sourceErrors.Inc()
}
