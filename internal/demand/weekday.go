package demand

import (
	"sort"

	"github.com/rentaldash/searchdemand/internal/model"
)

// WeekdayRanking ranks the weekday labels present in the batch by total searches.
// Percentages are shares of the batch total, or 0 for every weekday when the
// batch has no searches at all.
func WeekdayRanking(aggs []model.SearchAggregate) []model.WeekdayPreference {
	totals := make(map[string]int)
	grandTotal := 0

	for _, agg := range aggs {
		totals[agg.Weekday] += agg.TotalSearches
		grandTotal += agg.TotalSearches
	}

	ranking := make([]model.WeekdayPreference, 0, len(totals))
	for weekday, count := range totals {
		var percentage float64
		if grandTotal > 0 {
			percentage = 100 * float64(count) / float64(grandTotal)
		}
		ranking = append(ranking, model.WeekdayPreference{
			Weekday:       weekday,
			SearchesCount: count,
			Percentage:    percentage,
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].SearchesCount != ranking[j].SearchesCount {
			return ranking[i].SearchesCount > ranking[j].SearchesCount
		}
		return ranking[i].Weekday < ranking[j].Weekday
	})

	return ranking
}
