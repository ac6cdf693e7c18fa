// Package service coordinates loading, caching and building of demand reports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rentaldash/searchdemand/internal/cache"
	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/loader"
	"github.com/rentaldash/searchdemand/internal/metrics"
	"github.com/rentaldash/searchdemand/internal/model"
)

// ReportCache stores built reports. *cache.Cache implements it.
type ReportCache interface {
	GetReport(ctx context.Context, key string) (*model.AnalyticsReport, error)
	SetReport(ctx context.Context, key string, report *model.AnalyticsReport, ttl time.Duration) error
}

// ReportService builds analytics reports from the configured aggregate source.
type ReportService struct {
	loader  loader.Loader
	engine  *demand.Engine
	cache   ReportCache
	ttl     time.Duration
	metrics metrics.Recorder
	logger  *slog.Logger
	flight  singleflight.Group
}

// NewReportService creates a new ReportService. reportCache may be nil to disable caching.
func NewReportService(
	source loader.Loader,
	engine *demand.Engine,
	reportCache ReportCache,
	ttl time.Duration,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *ReportService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if engine == nil {
		engine = demand.NewEngine(demand.DefaultThresholds())
	}
	if ttl <= 0 {
		ttl = cache.DefaultReportTTL
	}
	return &ReportService{
		loader:  source,
		engine:  engine,
		cache:   reportCache,
		ttl:     ttl,
		metrics: recorder,
		logger:  logger.With("component", "service.report"),
	}
}

// Report loads the current batch for cfg and builds its report as of now.
// Concurrent calls for the same configuration and calendar day share one load and build.
// The shared work is detached from any single caller, so a caller that goes away only
// abandons its own wait.
func (s *ReportService) Report(ctx context.Context, cfg model.WindowConfig, now time.Time) (*model.AnalyticsReport, error) {
	if err := demand.ValidateConfig(cfg); err != nil {
		s.metrics.IncValidationFailure(metrics.FailureConfig)
		return nil, err
	}

	flightKey := fmt.Sprintf("%d:%d:%t:%s", cfg.DaysAhead, cfg.Limit, cfg.IncludeAnonymous, now.UTC().Format(model.DateLayout))
	flightCtx := context.WithoutCancel(ctx)

	ch := s.flight.DoChan(flightKey, func() (interface{}, error) {
		batch, err := s.load(flightCtx, cfg, now)
		if err != nil {
			return nil, err
		}
		return s.BuildFromBatch(flightCtx, cfg, batch, now)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.metrics.IncReportShared()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.AnalyticsReport), nil
	}
}

// BuildFromBatch builds a report for a caller-supplied batch, using the cache when
// one is configured. Cache failures are logged and never fail the build.
func (s *ReportService) BuildFromBatch(ctx context.Context, cfg model.WindowConfig, batch []model.SearchAggregate, now time.Time) (*model.AnalyticsReport, error) {
	if err := demand.ValidateConfig(cfg); err != nil {
		s.metrics.IncValidationFailure(metrics.FailureConfig)
		return nil, err
	}
	if err := demand.Validate(batch); err != nil {
		s.metrics.IncValidationFailure(metrics.FailureAggregate)
		s.logger.Warn("rejected aggregate batch", "error", err, "aggregates", len(batch))
		return nil, err
	}

	key := s.cacheKey(cfg, batch, now)
	if report := s.cachedReport(ctx, key); report != nil {
		return report, nil
	}

	start := time.Now()
	report, err := s.engine.BuildReport(cfg, batch, now)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveReportBuildDuration(time.Since(start))
	s.metrics.IncReportBuilt()

	if key != "" {
		if err := s.cache.SetReport(ctx, key, report, s.ttl); err != nil {
			s.logger.Warn("failed to cache report", "key", key, "error", err)
		}
	}

	return report, nil
}

// Aggregates returns the validated, windowed batch the report for cfg would be built from.
func (s *ReportService) Aggregates(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error) {
	if err := demand.ValidateConfig(cfg); err != nil {
		s.metrics.IncValidationFailure(metrics.FailureConfig)
		return nil, err
	}

	batch, err := s.load(ctx, cfg, now)
	if err != nil {
		return nil, err
	}

	prepared, err := demand.Prepare(cfg, batch, now)
	if err != nil {
		s.metrics.IncValidationFailure(metrics.FailureAggregate)
		return nil, err
	}
	return prepared, nil
}

// load fetches a batch and reports every non-cancellation failure as ErrSourceUnavailable.
func (s *ReportService) load(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error) {
	batch, err := s.loader.Load(ctx, cfg, now)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.metrics.IncSourceError()
		s.logger.Error("failed to load aggregates", "error", err)
		if errors.Is(err, loader.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", loader.ErrSourceUnavailable, err)
	}

	s.metrics.ObserveAggregateCount(len(batch))
	return batch, nil
}

// cacheKey returns "" when caching is disabled or the key cannot be derived.
func (s *ReportService) cacheKey(cfg model.WindowConfig, batch []model.SearchAggregate, now time.Time) string {
	if s.cache == nil {
		return ""
	}
	key, err := cache.ReportKey(cfg, s.engine.Thresholds(), batch, now)
	if err != nil {
		s.logger.Warn("failed to derive report cache key", "error", err)
		return ""
	}
	return key
}

func (s *ReportService) cachedReport(ctx context.Context, key string) *model.AnalyticsReport {
	if key == "" {
		return nil
	}

	report, err := s.cache.GetReport(ctx, key)
	switch {
	case err == nil:
		s.metrics.IncReportCacheHit()
		return report
	case errors.Is(err, cache.ErrCacheMiss):
		s.metrics.IncReportCacheMiss()
	default:
		s.metrics.IncReportCacheMiss()
		s.logger.Warn("report cache lookup failed", "key", key, "error", err)
	}
	return nil
}
