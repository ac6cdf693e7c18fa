package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/model"
)

// SearchAggregateRepository builds per-date search aggregates from raw search events.
type SearchAggregateRepository struct {
	repo *Repository
}

// NewSearchAggregateRepository creates a new SearchAggregateRepository.
func NewSearchAggregateRepository(repo *Repository) *SearchAggregateRepository {
	return &SearchAggregateRepository{repo: repo}
}

// clientSearchRow is one identified search as read from search_events.
type clientSearchRow struct {
	checkinDate  time.Time
	checkoutDate time.Time
	guests       int
	property     string
	clientID     string
	clientName   string
	clientEmail  string
}

// ipSearchRow is the anonymous activity of one IP for one check-in date.
type ipSearchRow struct {
	checkinDate   time.Time
	ipAddress     string
	searches      int
	checkoutDates []string
	guests        []int64
	properties    []string
}

// ListUpcoming returns one aggregate per check-in date between today and
// today+days_ahead inclusive, ordered by date and truncated to limit.
// Anonymous searches are left out entirely when include_anonymous is off.
func (r *SearchAggregateRepository) ListUpcoming(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error) {
	if err := demand.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, cfg.DaysAhead)

	clients, err := r.listClientSearches(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var ips []ipSearchRow
	if cfg.IncludeAnonymous {
		ips, err = r.listIPSearches(ctx, from, to)
		if err != nil {
			return nil, err
		}
	}

	aggs := assembleAggregates(clients, ips, now)
	if len(aggs) > cfg.Limit {
		aggs = aggs[:cfg.Limit]
	}
	return aggs, nil
}

func (r *SearchAggregateRepository) listClientSearches(ctx context.Context, from, to time.Time) ([]clientSearchRow, error) {
	query := `
		SELECT checkin_date, checkout_date, guests, COALESCE(property, ''),
			   client_id, COALESCE(client_name, ''), COALESCE(client_email, '')
		FROM search_events
		WHERE client_id IS NOT NULL AND checkin_date >= $1 AND checkin_date <= $2
		ORDER BY checkin_date, searched_at, id
	`

	rows, err := r.repo.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query client searches: %w", err)
	}
	defer rows.Close()

	result := make([]clientSearchRow, 0)
	for rows.Next() {
		var row clientSearchRow
		if err := rows.Scan(
			&row.checkinDate,
			&row.checkoutDate,
			&row.guests,
			&row.property,
			&row.clientID,
			&row.clientName,
			&row.clientEmail,
		); err != nil {
			return nil, fmt.Errorf("scan client search: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client searches: %w", err)
	}

	return result, nil
}

func (r *SearchAggregateRepository) listIPSearches(ctx context.Context, from, to time.Time) ([]ipSearchRow, error) {
	query := `
		SELECT checkin_date, ip_address, COUNT(*),
			   array_agg(to_char(checkout_date, 'YYYY-MM-DD') ORDER BY searched_at, id),
			   array_agg(guests ORDER BY searched_at, id),
			   COALESCE(array_agg(DISTINCT property) FILTER (WHERE property IS NOT NULL), '{}')
		FROM search_events
		WHERE client_id IS NULL AND checkin_date >= $1 AND checkin_date <= $2
		GROUP BY checkin_date, ip_address
		ORDER BY checkin_date, ip_address
	`

	rows, err := r.repo.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query anonymous searches: %w", err)
	}
	defer rows.Close()

	result := make([]ipSearchRow, 0)
	for rows.Next() {
		row, err := scanIPSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan anonymous search: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anonymous searches: %w", err)
	}

	return result, nil
}

// rowScanner is satisfied by *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIPSearch(rows rowScanner) (ipSearchRow, error) {
	var row ipSearchRow
	err := rows.Scan(
		&row.checkinDate,
		&row.ipAddress,
		&row.searches,
		pq.Array(&row.checkoutDates),
		pq.Array(&row.guests),
		pq.Array(&row.properties),
	)
	return row, err
}

// aggregateAccumulator accumulates searches for a single check-in date.
type aggregateAccumulator struct {
	date        time.Time
	clients     []model.SearchingClient
	ips         []model.SearchingIP
	anonymous   int
	stayNights  int
	stayEntries int
}

// assembleAggregates groups identified and anonymous searches per check-in date.
// Weekday and days until check-in are derived from now.
func assembleAggregates(clients []clientSearchRow, ips []ipSearchRow, now time.Time) []model.SearchAggregate {
	byDate := make(map[string]*aggregateAccumulator)
	get := func(date time.Time) *aggregateAccumulator {
		key := date.UTC().Format(model.DateLayout)
		acc, ok := byDate[key]
		if !ok {
			acc = &aggregateAccumulator{
				date:    date.UTC(),
				clients: make([]model.SearchingClient, 0),
				ips:     make([]model.SearchingIP, 0),
			}
			byDate[key] = acc
		}
		return acc
	}

	for _, row := range clients {
		acc := get(row.checkinDate)
		acc.clients = append(acc.clients, model.SearchingClient{
			ClientID:     row.clientID,
			ClientName:   row.clientName,
			ClientEmail:  row.clientEmail,
			CheckoutDate: row.checkoutDate.UTC().Format(model.DateLayout),
			Guests:       row.guests,
			Property:     row.property,
		})
		acc.stayNights += stayNights(row.checkinDate, row.checkoutDate)
		acc.stayEntries++
	}

	for _, row := range ips {
		acc := get(row.checkinDate)

		guests := make([]int, len(row.guests))
		for i, g := range row.guests {
			guests[i] = int(g)
		}
		for _, checkout := range row.checkoutDates {
			if date, err := time.Parse(model.DateLayout, checkout); err == nil {
				acc.stayNights += stayNights(row.checkinDate, date)
				acc.stayEntries++
			}
		}

		acc.anonymous += row.searches
		acc.ips = append(acc.ips, model.SearchingIP{
			IPAddress:     row.ipAddress,
			SearchesCount: row.searches,
			CheckoutDates: nonNil(row.checkoutDates),
			GuestsCounts:  guests,
			Properties:    nonNil(row.properties),
		})
	}

	aggs := make([]model.SearchAggregate, 0, len(byDate))
	for key, acc := range byDate {
		var avgStay float64
		if acc.stayEntries > 0 {
			avgStay = float64(acc.stayNights) / float64(acc.stayEntries)
		}
		aggs = append(aggs, model.SearchAggregate{
			CheckinDate:       key,
			Weekday:           acc.date.Weekday().String(),
			DaysUntilCheckin:  demand.DaysUntil(acc.date, now),
			TotalSearches:     len(acc.clients) + acc.anonymous,
			ClientSearches:    len(acc.clients),
			AnonymousSearches: acc.anonymous,
			AvgStayDuration:   avgStay,
			SearchingClients:  acc.clients,
			SearchingIPs:      acc.ips,
		})
	}

	sort.Slice(aggs, func(i, j int) bool {
		return aggs[i].CheckinDate < aggs[j].CheckinDate
	})

	return aggs
}

func stayNights(checkin, checkout time.Time) int {
	event := model.SearchEvent{CheckinDate: checkin, CheckoutDate: checkout}
	return event.StayNights()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
