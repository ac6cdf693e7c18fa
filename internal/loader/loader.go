// Package loader fetches batches of search aggregates from wherever they are recorded.
package loader

import (
	"context"
	"errors"
	"time"

	"github.com/rentaldash/searchdemand/internal/model"
)

// ErrSourceUnavailable is returned when the aggregate source cannot be reached or
// answers with something other than a batch.
var ErrSourceUnavailable = errors.New("aggregate source unavailable")

// Loader returns the aggregate batch for a window configuration as of now.
type Loader interface {
	Load(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error)
}

// Func adapts a plain function to Loader.
type Func func(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error)

// Load calls f.
func (f Func) Load(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error) {
	return f(ctx, cfg, now)
}

// StaticLoader serves a fixed batch. Windowing is left to the engine.
type StaticLoader struct {
	batch []model.SearchAggregate
}

// NewStatic creates a StaticLoader over batch.
func NewStatic(batch []model.SearchAggregate) *StaticLoader {
	return &StaticLoader{batch: batch}
}

// Load returns a copy of the batch so callers cannot modify the loader's state.
func (s *StaticLoader) Load(ctx context.Context, _ model.WindowConfig, _ time.Time) ([]model.SearchAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.SearchAggregate(nil), s.batch...), nil
}
