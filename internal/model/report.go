package model

import "time"

// HighDemandDate is a check-in date whose search volume crossed the demand threshold.
type HighDemandDate struct {
	Date              string `json:"date"`
	Searches          int    `json:"searches"`
	PotentialClients  int    `json:"potential_clients"`
	AnonymousInterest int    `json:"anonymous_interest"`
}

// RepeatedSearchClient is an identified client who searched repeatedly.
type RepeatedSearchClient struct {
	ClientID      string   `json:"client_id"`
	ClientName    string   `json:"client_name"`
	SearchCount   int      `json:"search_count"`
	DatesSearched []string `json:"dates_searched"`
}

// DemandAlert is a near-term aggregate that needs operator attention.
type DemandAlert = SearchAggregate

// WeekdayPreference is the share of searches for one weekday label.
type WeekdayPreference struct {
	Weekday       string  `json:"weekday"`
	SearchesCount int     `json:"searches_count"`
	Percentage    float64 `json:"percentage"`
}

// AnticipationBucket counts searches whose check-in falls within a range of days ahead.
// MaxDays is nil for the open-ended last bucket.
type AnticipationBucket struct {
	Label   string `json:"label"`
	MinDays int    `json:"min_days"`
	MaxDays *int   `json:"max_days"`
	Count   int    `json:"count"`
}

// AnalyticsReport is the immutable result of one engine run.
type AnalyticsReport struct {
	GeneratedAt           time.Time              `json:"generated_at"`
	WindowConfig          WindowConfig           `json:"window_config"`
	HighDemandDates       []HighDemandDate       `json:"high_demand_dates"`
	RepeatedClients       []RepeatedSearchClient `json:"repeated_clients"`
	DemandAlerts          []DemandAlert          `json:"demand_alerts"`
	WeekdayRanking        []WeekdayPreference    `json:"weekday_ranking"`
	AnticipationHistogram []AnticipationBucket   `json:"anticipation_histogram"`
	UniqueClientCount     int                    `json:"unique_client_count"`
	UniqueIPCount         int                    `json:"unique_ip_count"`
	AvgAnticipationDays   float64                `json:"avg_anticipation_days"`
}
