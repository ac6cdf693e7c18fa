package demand

import (
	"sort"

	"github.com/rentaldash/searchdemand/internal/model"
)

// DefaultHighDemandThreshold is the minimum total searches for a high-demand date.
const DefaultHighDemandThreshold = 5

// HighDemandDates returns every date with at least threshold searches, busiest first.
// Equal search counts are ordered by the earlier check-in date.
func HighDemandDates(aggs []model.SearchAggregate, threshold int) []model.HighDemandDate {
	dates := make([]model.HighDemandDate, 0)

	for _, agg := range aggs {
		if agg.TotalSearches < threshold {
			continue
		}
		dates = append(dates, model.HighDemandDate{
			Date:              agg.CheckinDate,
			Searches:          agg.TotalSearches,
			PotentialClients:  len(agg.SearchingClients),
			AnonymousInterest: len(agg.SearchingIPs),
		})
	}

	// YYYY-MM-DD compares chronologically as a string.
	sort.SliceStable(dates, func(i, j int) bool {
		if dates[i].Searches != dates[j].Searches {
			return dates[i].Searches > dates[j].Searches
		}
		return dates[i].Date < dates[j].Date
	})

	return dates
}
