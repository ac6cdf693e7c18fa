package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/model"
)

const (
	reportKeyPrefix = "report:"

	// DefaultReportTTL is the TTL for cached reports.
	DefaultReportTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when no usable entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// reportKeyInput is everything a report depends on. Only the calendar date of now
// matters, since days until check-in are whole days.
type reportKeyInput struct {
	Config     model.WindowConfig      `json:"config"`
	Thresholds demand.Thresholds       `json:"thresholds"`
	Date       string                  `json:"date"`
	Batch      []model.SearchAggregate `json:"batch"`
}

// ReportKey derives the cache key for a report built from the given inputs.
func ReportKey(cfg model.WindowConfig, thresholds demand.Thresholds, batch []model.SearchAggregate, now time.Time) (string, error) {
	data, err := json.Marshal(reportKeyInput{
		Config:     cfg,
		Thresholds: thresholds,
		Date:       now.UTC().Format(model.DateLayout),
		Batch:      batch,
	})
	if err != nil {
		return "", fmt.Errorf("marshal report key input: %w", err)
	}

	sum := blake2b.Sum256(data)
	return reportKeyPrefix + hex.EncodeToString(sum[:16]), nil
}

// GetReport retrieves a cached report.
// Returns ErrCacheMiss if not found or if the entry cannot be decoded.
func (c *Cache) GetReport(ctx context.Context, key string) (*model.AnalyticsReport, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var report model.AnalyticsReport
	if err := json.Unmarshal(data, &report); err != nil {
		// Corrupted cache entry - drop it and treat as miss
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}

	return &report, nil
}

// SetReport stores a report under key for ttl.
func (c *Cache) SetReport(ctx context.Context, key string, report *model.AnalyticsReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}

	return nil
}
