// Package demand derives sales-facing demand signals from per-date search aggregates.
//
// Every function in this package is pure: it reads an aggregate batch, never mutates it,
// and returns freshly allocated results. BuildReport combines the individual facets into
// one model.AnalyticsReport.
package demand

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrValidation    = errors.New("invalid search aggregate")
	ErrConfiguration = errors.New("invalid window configuration")
)

// ValidationError reports a malformed aggregate in an input batch.
type ValidationError struct {
	Index       int    // position in the batch
	CheckinDate string // may be empty when the date itself is missing
	Field       string
	Reason      string
}

func (e *ValidationError) Error() string {
	date := e.CheckinDate
	if date == "" {
		date = "unknown date"
	}
	return fmt.Sprintf("aggregate[%d] (%s): %s %s", e.Index, date, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConfigurationError reports a window configuration outside sane bounds.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("window config: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
