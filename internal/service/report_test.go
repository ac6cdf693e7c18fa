package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rentaldash/searchdemand/internal/cache"
	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/loader"
	"github.com/rentaldash/searchdemand/internal/metrics"
	"github.com/rentaldash/searchdemand/internal/model"
	"github.com/rentaldash/searchdemand/internal/testutil"
)

var window = model.WindowConfig{DaysAhead: 30, Limit: 100, IncludeAnonymous: true}

// memoryCache is a ReportCache backed by a map.
type memoryCache struct {
	mu      sync.Mutex
	reports map[string]*model.AnalyticsReport
	failGet bool
	failSet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{reports: make(map[string]*model.AnalyticsReport)}
}

func (c *memoryCache) GetReport(_ context.Context, key string) (*model.AnalyticsReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("connection refused")
	}
	report, ok := c.reports[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return report, nil
}

func (c *memoryCache) SetReport(_ context.Context, key string, report *model.AnalyticsReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("connection refused")
	}
	c.reports[key] = report
	return nil
}

// countingLoader counts Load calls and serves a fixed batch.
type countingLoader struct {
	calls atomic.Int32
	batch []model.SearchAggregate
	err   error
}

func (l *countingLoader) Load(ctx context.Context, _ model.WindowConfig, _ time.Time) ([]model.SearchAggregate, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.batch, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleBatch() []model.SearchAggregate {
	return []model.SearchAggregate{
		testutil.WithIPs(testutil.WithClients(testutil.NewAggregate(5, 2, 1), "c1", "c1"), "1.2.3.4"),
		testutil.WithClients(testutil.NewAggregate(12, 1, 0), "c2"),
	}
}

func TestReportService_Report(t *testing.T) {
	t.Parallel()

	src := &countingLoader{batch: sampleBatch()}
	recorder := metrics.NewInMemory()
	svc := NewReportService(src, nil, nil, 0, recorder, discardLogger())

	report, err := svc.Report(context.Background(), window, testutil.Now)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if report.UniqueClientCount != 2 {
		t.Errorf("UniqueClientCount = %d, want 2", report.UniqueClientCount)
	}
	if len(report.RepeatedClients) != 1 || report.RepeatedClients[0].ClientID != "c1" {
		t.Errorf("unexpected repeated clients: %+v", report.RepeatedClients)
	}

	snap := recorder.Snapshot()
	if snap.ReportsBuilt != 1 || snap.AggregatesObserved != 2 || snap.BuildDurationCount != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
	if snap.ReportCacheHits != 0 || snap.ReportCacheMisses != 0 {
		t.Errorf("no cache configured, yet cache metrics were recorded: %+v", snap)
	}
}

func TestReportService_CacheHit(t *testing.T) {
	t.Parallel()

	src := &countingLoader{batch: sampleBatch()}
	recorder := metrics.NewInMemory()
	svc := NewReportService(src, nil, newMemoryCache(), time.Minute, recorder, discardLogger())

	first, err := svc.Report(context.Background(), window, testutil.Now)
	if err != nil {
		t.Fatalf("first Report failed: %v", err)
	}
	second, err := svc.Report(context.Background(), window, testutil.Now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Report failed: %v", err)
	}

	if first != second {
		t.Error("expected the cached report to be returned as built")
	}
	if src.calls.Load() != 2 {
		t.Errorf("expected the batch to be loaded for each request, got %d loads", src.calls.Load())
	}

	snap := recorder.Snapshot()
	if snap.ReportsBuilt != 1 || snap.ReportCacheHits != 1 || snap.ReportCacheMisses != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestReportService_NewDayMissesCache(t *testing.T) {
	t.Parallel()

	src := &countingLoader{batch: sampleBatch()}
	recorder := metrics.NewInMemory()
	svc := NewReportService(src, nil, newMemoryCache(), time.Minute, recorder, discardLogger())

	today, err := svc.Report(context.Background(), window, testutil.Now)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	tomorrow, err := svc.Report(context.Background(), window, testutil.Now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if recorder.Snapshot().ReportsBuilt != 2 {
		t.Error("expected a fresh build on the next day")
	}
	// (5*3 + 12*1) / 4 today, (4*3 + 11*1) / 4 tomorrow
	if today.AvgAnticipationDays != 6.75 || tomorrow.AvgAnticipationDays != 5.75 {
		t.Errorf("unexpected anticipation: today %f, tomorrow %f", today.AvgAnticipationDays, tomorrow.AvgAnticipationDays)
	}
}

func TestReportService_CacheFailuresDoNotFailRequests(t *testing.T) {
	t.Parallel()

	c := newMemoryCache()
	c.failGet = true
	c.failSet = true
	src := &countingLoader{batch: sampleBatch()}
	svc := NewReportService(src, nil, c, time.Minute, nil, discardLogger())

	if _, err := svc.Report(context.Background(), window, testutil.Now); err != nil {
		t.Fatalf("Report failed despite cache errors: %v", err)
	}
}

func TestReportService_Errors(t *testing.T) {
	t.Parallel()

	broken := testutil.NewAggregate(3, 2, 2)
	broken.TotalSearches = 9

	tests := []struct {
		name       string
		cfg        model.WindowConfig
		loader     *countingLoader
		wantErr    error
		wantLoads  int32
		wantMetric func(metrics.Snapshot) bool
	}{
		{
			name:       "invalid config",
			cfg:        model.WindowConfig{DaysAhead: 0, Limit: 10},
			loader:     &countingLoader{},
			wantErr:    demand.ErrConfiguration,
			wantLoads:  0,
			wantMetric: func(s metrics.Snapshot) bool { return s.ConfigFailures == 1 },
		},
		{
			name:       "source failure",
			cfg:        window,
			loader:     &countingLoader{err: errors.New("connection reset")},
			wantErr:    loader.ErrSourceUnavailable,
			wantLoads:  1,
			wantMetric: func(s metrics.Snapshot) bool { return s.SourceErrors == 1 },
		},
		{
			name:       "already wrapped source failure",
			cfg:        window,
			loader:     &countingLoader{err: loader.ErrSourceUnavailable},
			wantErr:    loader.ErrSourceUnavailable,
			wantLoads:  1,
			wantMetric: func(s metrics.Snapshot) bool { return s.SourceErrors == 1 },
		},
		{
			name:       "invalid aggregate",
			cfg:        window,
			loader:     &countingLoader{batch: []model.SearchAggregate{broken}},
			wantErr:    demand.ErrValidation,
			wantLoads:  1,
			wantMetric: func(s metrics.Snapshot) bool { return s.AggregateFailures == 1 },
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := metrics.NewInMemory()
			svc := NewReportService(tt.loader, nil, newMemoryCache(), time.Minute, recorder, discardLogger())

			report, err := svc.Report(context.Background(), tt.cfg, testutil.Now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if report != nil {
				t.Error("expected no report on error")
			}
			if got := tt.loader.calls.Load(); got != tt.wantLoads {
				t.Errorf("loads = %d, want %d", got, tt.wantLoads)
			}
			if !tt.wantMetric(recorder.Snapshot()) {
				t.Errorf("unexpected metrics: %+v", recorder.Snapshot())
			}
		})
	}
}

// blockingLoader holds every Load until release is closed.
type blockingLoader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	batch   []model.SearchAggregate
}

func (l *blockingLoader) Load(ctx context.Context, _ model.WindowConfig, _ time.Time) ([]model.SearchAggregate, error) {
	l.calls.Add(1)
	l.once.Do(func() { close(l.started) })
	select {
	case <-l.release:
		return l.batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestReportService_ConcurrentRequestsShareOneBuild(t *testing.T) {
	t.Parallel()

	src := &blockingLoader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		batch:   sampleBatch(),
	}
	recorder := metrics.NewInMemory()
	svc := NewReportService(src, nil, nil, 0, recorder, discardLogger())

	const callers = 5
	reports := make([]*model.AnalyticsReport, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = svc.Report(context.Background(), window, testutil.Now)
		}(i)
	}

	<-src.started
	time.Sleep(100 * time.Millisecond) // let the other callers join the in-flight build
	close(src.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if reports[i] != reports[0] {
			t.Errorf("caller %d received a different report", i)
		}
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected one load, got %d", src.calls.Load())
	}
	if recorder.Snapshot().ReportsBuilt != 1 {
		t.Errorf("expected one build, got %d", recorder.Snapshot().ReportsBuilt)
	}
}

func TestReportService_BuildFromBatch(t *testing.T) {
	t.Parallel()

	svc := NewReportService(&countingLoader{}, demand.NewEngine(demand.Thresholds{
		HighDemand:           1,
		RepeatMinOccurrences: 2,
		AlertMaxDaysOut:      30,
		AlertMinSearches:     1,
	}), nil, 0, nil, discardLogger())

	report, err := svc.BuildFromBatch(context.Background(), window, sampleBatch(), testutil.Now)
	if err != nil {
		t.Fatalf("BuildFromBatch failed: %v", err)
	}
	if len(report.HighDemandDates) != 2 {
		t.Errorf("expected custom threshold to flag both dates, got %d", len(report.HighDemandDates))
	}
}

func TestReportService_Aggregates(t *testing.T) {
	t.Parallel()

	batch := append(sampleBatch(), testutil.NewAggregate(45, 3, 0))
	src := &countingLoader{batch: batch}
	svc := NewReportService(src, nil, nil, 0, nil, discardLogger())

	cfg := window
	cfg.IncludeAnonymous = false
	aggs, err := svc.Aggregates(context.Background(), cfg, testutil.Now)
	if err != nil {
		t.Fatalf("Aggregates failed: %v", err)
	}

	if len(aggs) != 2 {
		t.Fatalf("expected the two dates inside the window, got %d", len(aggs))
	}
	if aggs[0].AnonymousSearches != 0 || len(aggs[0].SearchingIPs) != 0 || aggs[0].TotalSearches != 2 {
		t.Errorf("anonymous activity not removed: %+v", aggs[0])
	}
	if batch[0].AnonymousSearches != 1 {
		t.Error("Aggregates must not modify the loaded batch")
	}
}

func TestReportService_CanceledCallerDoesNotFailSharedBuild(t *testing.T) {
	t.Parallel()

	src := &blockingLoader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		batch:   sampleBatch(),
	}
	svc := NewReportService(src, nil, nil, 0, nil, discardLogger())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Report(firstCtx, window, testutil.Now)
		firstErr <- err
	}()
	<-src.started

	type result struct {
		report *model.AnalyticsReport
		err    error
	}
	second := make(chan result, 1)
	go func() {
		report, err := svc.Report(context.Background(), window, testutil.Now)
		second <- result{report, err}
	}()

	time.Sleep(50 * time.Millisecond) // let the second caller join the in-flight build
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the canceled caller to get context.Canceled, got %v", err)
	}

	close(src.release)
	got := <-second
	if got.err != nil {
		t.Fatalf("expected the live caller to get a report, got %v", got.err)
	}
	if got.report == nil || got.report.UniqueClientCount != 2 {
		t.Errorf("unexpected report: %+v", got.report)
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected one load, got %d", src.calls.Load())
	}
}
