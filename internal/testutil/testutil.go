package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rentaldash/searchdemand/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730730

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	return func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}, nil
}

// ResetSearchEventsSchema drops and recreates the search_events table from migrations.
func ResetSearchEventsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	for _, name := range []string{"000001_search_events.down.sql", "000001_search_events.up.sql"} {
		sql, err := os.ReadFile(filepath.Join(root, "migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", "..")), nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// Now is a fixed reference time used across engine tests: Wednesday 2024-06-26 09:30 UTC.
var Now = time.Date(2024, 6, 26, 9, 30, 0, 0, time.UTC)

// DateIn returns the YYYY-MM-DD date days after Now.
func DateIn(days int) string {
	return Now.AddDate(0, 0, days).Format(model.DateLayout)
}

// NewAggregate builds a consistent aggregate for the date days after Now with the
// given client and anonymous search counts. Client and IP lists are left empty.
func NewAggregate(days, clientSearches, anonymousSearches int) model.SearchAggregate {
	date := Now.AddDate(0, 0, days)
	return model.SearchAggregate{
		CheckinDate:       date.Format(model.DateLayout),
		Weekday:           date.Weekday().String(),
		DaysUntilCheckin:  days,
		TotalSearches:     clientSearches + anonymousSearches,
		ClientSearches:    clientSearches,
		AnonymousSearches: anonymousSearches,
		AvgStayDuration:   2,
		SearchingClients:  []model.SearchingClient{},
		SearchingIPs:      []model.SearchingIP{},
	}
}

// WithClients appends one client search entry per id.
func WithClients(agg model.SearchAggregate, clientIDs ...string) model.SearchAggregate {
	for _, id := range clientIDs {
		agg.SearchingClients = append(agg.SearchingClients, model.SearchingClient{
			ClientID:     id,
			ClientName:   "Client " + id,
			ClientEmail:  id + "@example.com",
			CheckoutDate: agg.CheckinDate,
			Guests:       2,
			Property:     "Casa Azul",
		})
	}
	return agg
}

// WithIPs appends one anonymous IP entry per address.
func WithIPs(agg model.SearchAggregate, addresses ...string) model.SearchAggregate {
	for _, addr := range addresses {
		agg.SearchingIPs = append(agg.SearchingIPs, model.SearchingIP{
			IPAddress:     addr,
			SearchesCount: 1,
			CheckoutDates: []string{agg.CheckinDate},
			GuestsCounts:  []int{2},
			Properties:    []string{"Casa Azul"},
		})
	}
	return agg
}
