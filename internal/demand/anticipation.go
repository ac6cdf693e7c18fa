package demand

import "github.com/rentaldash/searchdemand/internal/model"

// anticipationRange is an inclusive range of days ahead. max < 0 means unbounded.
type anticipationRange struct {
	label string
	min   int
	max   int
}

var anticipationRanges = []anticipationRange{
	{label: "1-7 days", min: 1, max: 7},
	{label: "8-15 days", min: 8, max: 15},
	{label: "16-30 days", min: 16, max: 30},
	{label: "31-60 days", min: 31, max: 60},
	{label: "61+ days", min: 61, max: -1},
}

func (r anticipationRange) contains(days int) bool {
	return days >= r.min && (r.max < 0 || days <= r.max)
}

// AnticipationHistogram weights each bucket by the searches of the dates falling in it.
// Same-day dates (0 days ahead) are not anticipation and land in no bucket.
// All five buckets are always returned in fixed order.
func AnticipationHistogram(aggs []model.SearchAggregate) []model.AnticipationBucket {
	buckets := make([]model.AnticipationBucket, len(anticipationRanges))
	for i, r := range anticipationRanges {
		buckets[i] = model.AnticipationBucket{Label: r.label, MinDays: r.min}
		if r.max >= 0 {
			maxDays := r.max
			buckets[i].MaxDays = &maxDays
		}
	}

	for _, agg := range aggs {
		for i, r := range anticipationRanges {
			if r.contains(agg.DaysUntilCheckin) {
				buckets[i].Count += agg.TotalSearches
				break
			}
		}
	}

	return buckets
}
