package demand

import "github.com/rentaldash/searchdemand/internal/model"

// UniqueClientCount counts distinct client ids across every date in the batch.
func UniqueClientCount(aggs []model.SearchAggregate) int {
	seen := make(map[string]bool)
	for _, agg := range aggs {
		for _, client := range agg.SearchingClients {
			seen[client.ClientID] = true
		}
	}
	return len(seen)
}

// UniqueIPCount counts distinct anonymous IP addresses across every date in the batch.
func UniqueIPCount(aggs []model.SearchAggregate) int {
	seen := make(map[string]bool)
	for _, agg := range aggs {
		for _, ip := range agg.SearchingIPs {
			seen[ip.IPAddress] = true
		}
	}
	return len(seen)
}

// AvgAnticipationDays is the search-weighted mean of days until check-in, 0 without searches.
func AvgAnticipationDays(aggs []model.SearchAggregate) float64 {
	var weighted, searches int
	for _, agg := range aggs {
		weighted += agg.DaysUntilCheckin * agg.TotalSearches
		searches += agg.TotalSearches
	}
	if searches == 0 {
		return 0
	}
	return float64(weighted) / float64(searches)
}
