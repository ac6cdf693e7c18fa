package demand

import (
	"time"

	"github.com/rentaldash/searchdemand/internal/model"
)

// Thresholds tunes the facets that filter on counts or distance.
type Thresholds struct {
	HighDemand           int `json:"high_demand"`
	RepeatMinOccurrences int `json:"repeat_min_occurrences"`
	AlertMaxDaysOut      int `json:"alert_max_days_out"`
	AlertMinSearches     int `json:"alert_min_searches"`
}

// DefaultThresholds returns the thresholds used by the sales dashboard.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighDemand:           DefaultHighDemandThreshold,
		RepeatMinOccurrences: DefaultRepeatMinOccurrences,
		AlertMaxDaysOut:      DefaultAlertMaxDaysOut,
		AlertMinSearches:     DefaultAlertMinSearches,
	}
}

// Engine builds reports with a fixed set of thresholds. The zero value is not useful;
// use NewEngine.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates an Engine.
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Thresholds returns the thresholds the engine was built with.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// BuildReport builds a report with the default thresholds.
func BuildReport(cfg model.WindowConfig, aggs []model.SearchAggregate, now time.Time) (*model.AnalyticsReport, error) {
	return NewEngine(DefaultThresholds()).BuildReport(cfg, aggs, now)
}

// BuildReport validates the configuration and the batch, then derives every facet from
// the same normalized copy of the batch. The caller's slice is never modified.
// For a fixed batch, configuration and now the result is always the same.
func (e *Engine) BuildReport(cfg model.WindowConfig, aggs []model.SearchAggregate, now time.Time) (*model.AnalyticsReport, error) {
	batch, err := Prepare(cfg, aggs, now)
	if err != nil {
		return nil, err
	}
	t := e.thresholds

	return &model.AnalyticsReport{
		GeneratedAt:           now.UTC(),
		WindowConfig:          cfg,
		HighDemandDates:       HighDemandDates(batch, t.HighDemand),
		RepeatedClients:       RepeatedSearchClients(batch, t.RepeatMinOccurrences),
		DemandAlerts:          DemandAlerts(batch, t.AlertMaxDaysOut, t.AlertMinSearches),
		WeekdayRanking:        WeekdayRanking(batch),
		AnticipationHistogram: AnticipationHistogram(batch),
		UniqueClientCount:     UniqueClientCount(batch),
		UniqueIPCount:         UniqueIPCount(batch),
		AvgAnticipationDays:   AvgAnticipationDays(batch),
	}, nil
}

// Prepare validates a batch and returns the normalized, windowed copy the report facets
// would see. It backs the raw aggregate listing.
func Prepare(cfg model.WindowConfig, aggs []model.SearchAggregate, now time.Time) ([]model.SearchAggregate, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := Validate(aggs); err != nil {
		return nil, err
	}
	return ApplyWindow(Normalize(aggs, now), cfg), nil
}
