// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/goccy/go-json"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// SearchingClient is one search performed by an identified client for a check-in date.
type SearchingClient struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	CheckoutDate string `json:"checkout_date"`
	Guests       int    `json:"guests" validate:"gte=0"`
	Property     string `json:"property"`
}

// SearchingIP summarizes anonymous searches from one IP address for a check-in date.
type SearchingIP struct {
	IPAddress     string   `json:"ip_address" validate:"required"`
	SearchesCount int      `json:"searches_count" validate:"gte=0"`
	CheckoutDates []string `json:"checkout_dates"`
	GuestsCounts  []int    `json:"guests_counts"`
	Properties    []string `json:"properties"`
}

// SearchAggregate summarizes all search activity for a single candidate check-in date.
type SearchAggregate struct {
	CheckinDate       string            `json:"checkin_date" validate:"required,datetime=2006-01-02"`
	Weekday           string            `json:"weekday"`
	DaysUntilCheckin  int               `json:"days_until_checkin" validate:"gte=0"`
	TotalSearches     int               `json:"total_searches" validate:"gte=0"`
	ClientSearches    int               `json:"client_searches" validate:"gte=0"`
	AnonymousSearches int               `json:"anonymous_searches" validate:"gte=0"`
	AvgStayDuration   float64           `json:"avg_stay_duration" validate:"gte=0"`
	SearchingClients  []SearchingClient `json:"searching_clients" validate:"dive"`
	SearchingIPs      []SearchingIP     `json:"searching_ips" validate:"dive"`

	// missing lists required numeric fields absent from the decoded JSON.
	missing []string
}

// requiredCounts are the numeric fields that must be present on the wire.
var requiredCounts = []string{"total_searches", "client_searches", "anonymous_searches"}

// UnmarshalJSON decodes an aggregate and remembers which required counts were absent,
// so validation can reject them instead of treating them as zero.
func (a *SearchAggregate) UnmarshalJSON(data []byte) error {
	type plain SearchAggregate
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*a = SearchAggregate(decoded)
	a.missing = nil
	for _, name := range requiredCounts {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			a.missing = append(a.missing, name)
		}
	}
	return nil
}

// MissingFields returns the required numeric fields that were absent when decoded.
func (a *SearchAggregate) MissingFields() []string {
	return a.missing
}

// Date parses CheckinDate as a UTC calendar date.
func (a *SearchAggregate) Date() (time.Time, error) {
	return time.Parse(DateLayout, a.CheckinDate)
}

// WindowConfig is the look-ahead window a report was built for.
type WindowConfig struct {
	DaysAhead        int  `json:"days_ahead" validate:"gt=0"`
	Limit            int  `json:"limit" validate:"gt=0"`
	IncludeAnonymous bool `json:"include_anonymous"`
}
