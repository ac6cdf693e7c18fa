package demand

import (
	"sort"

	"github.com/rentaldash/searchdemand/internal/model"
)

// Demand alert defaults.
const (
	DefaultAlertMaxDaysOut  = 30
	DefaultAlertMinSearches = 3
)

// DemandAlerts selects near-term dates with enough searches to need attention,
// soonest first and busiest first within the same day.
//
// The result depends on days_until_checkin and therefore on when the batch was
// normalized: the same batch yields different alerts on different days.
func DemandAlerts(aggs []model.SearchAggregate, maxDaysOut, minSearches int) []model.DemandAlert {
	alerts := make([]model.DemandAlert, 0)

	for _, agg := range aggs {
		if agg.DaysUntilCheckin <= maxDaysOut && agg.TotalSearches >= minSearches {
			alerts = append(alerts, agg)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].DaysUntilCheckin != alerts[j].DaysUntilCheckin {
			return alerts[i].DaysUntilCheckin < alerts[j].DaysUntilCheckin
		}
		return alerts[i].TotalSearches > alerts[j].TotalSearches
	})

	return alerts
}
