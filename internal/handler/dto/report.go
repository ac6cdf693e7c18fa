// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/rentaldash/searchdemand/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WindowOverrides are optional window settings; unset fields keep the server defaults.
type WindowOverrides struct {
	DaysAhead        *int  `json:"days_ahead,omitempty"`
	Limit            *int  `json:"limit,omitempty"`
	IncludeAnonymous *bool `json:"include_anonymous,omitempty"`
}

// Apply returns defaults with the set overrides applied.
func (o *WindowOverrides) Apply(defaults model.WindowConfig) model.WindowConfig {
	cfg := defaults
	if o == nil {
		return cfg
	}
	if o.DaysAhead != nil {
		cfg.DaysAhead = *o.DaysAhead
	}
	if o.Limit != nil {
		cfg.Limit = *o.Limit
	}
	if o.IncludeAnonymous != nil {
		cfg.IncludeAnonymous = *o.IncludeAnonymous
	}
	return cfg
}

// BuildReportRequest is the body for building a report from a supplied batch.
type BuildReportRequest struct {
	Config     *WindowOverrides        `json:"config,omitempty"`
	Aggregates []model.SearchAggregate `json:"aggregates"`
	Now        *time.Time              `json:"now,omitempty"`
}

// AggregateListResponse wraps the raw aggregate view.
type AggregateListResponse struct {
	Data []model.SearchAggregate `json:"data"`
}
