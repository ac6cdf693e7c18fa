package demand

import (
	"sort"

	"github.com/rentaldash/searchdemand/internal/model"
)

// DefaultRepeatMinOccurrences is how many searches make a client a repeat searcher.
const DefaultRepeatMinOccurrences = 2

// clientAccumulator accumulates searches for a single client across the batch.
type clientAccumulator struct {
	name  string
	count int
	dates []string
}

// RepeatedSearchClients finds identified clients with at least minOccurrences searches.
// Every entry counts, including repeats under the same check-in date, and
// DatesSearched keeps the order in which the searches appear in the batch.
func RepeatedSearchClients(aggs []model.SearchAggregate, minOccurrences int) []model.RepeatedSearchClient {
	byClient := make(map[string]*clientAccumulator)

	for _, agg := range aggs {
		for _, client := range agg.SearchingClients {
			acc, ok := byClient[client.ClientID]
			if !ok {
				acc = &clientAccumulator{}
				byClient[client.ClientID] = acc
			}
			if acc.name == "" {
				acc.name = client.ClientName
			}
			acc.count++
			acc.dates = append(acc.dates, agg.CheckinDate)
		}
	}

	clients := make([]model.RepeatedSearchClient, 0)
	for id, acc := range byClient {
		if acc.count < minOccurrences {
			continue
		}
		clients = append(clients, model.RepeatedSearchClient{
			ClientID:      id,
			ClientName:    acc.name,
			SearchCount:   acc.count,
			DatesSearched: acc.dates,
		})
	}

	sort.Slice(clients, func(i, j int) bool {
		if clients[i].SearchCount != clients[j].SearchCount {
			return clients[i].SearchCount > clients[j].SearchCount
		}
		return clients[i].ClientID < clients[j].ClientID
	})

	return clients
}
