package demand

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rentaldash/searchdemand/internal/model"
	"github.com/rentaldash/searchdemand/internal/testutil"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       model.WindowConfig
		wantField string
	}{
		{"valid", model.WindowConfig{DaysAhead: 30, Limit: 100, IncludeAnonymous: true}, ""},
		{"zero days ahead", model.WindowConfig{DaysAhead: 0, Limit: 100}, "days_ahead"},
		{"negative days ahead", model.WindowConfig{DaysAhead: -1, Limit: 100}, "days_ahead"},
		{"zero limit", model.WindowConfig{DaysAhead: 30, Limit: 0}, "limit"},
		{"negative limit", model.WindowConfig{DaysAhead: 30, Limit: -5}, "limit"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateConfig(tt.cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", cfgErr.Field, tt.wantField)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Error("expected errors.Is(err, ErrConfiguration)")
			}
		})
	}
}

func TestValidate_AcceptsConsistentBatch(t *testing.T) {
	t.Parallel()

	batch := []model.SearchAggregate{
		testutil.WithClients(testutil.NewAggregate(5, 2, 0), "c1", "c2"),
		testutil.WithIPs(testutil.NewAggregate(6, 0, 3), "1.2.3.4"),
	}

	if err := Validate(batch); err != nil {
		t.Fatalf("expected valid batch, got %v", err)
	}
	if err := Validate(nil); err != nil {
		t.Fatalf("expected empty batch to be valid, got %v", err)
	}
}

func TestValidate_RejectsMalformedAggregates(t *testing.T) {
	t.Parallel()

	conservation := testutil.NewAggregate(5, 6, 4)
	conservation.TotalSearches = 11

	negative := testutil.NewAggregate(5, 0, 0)
	negative.ClientSearches = -1
	negative.AnonymousSearches = 1

	badDate := testutil.NewAggregate(5, 1, 0)
	badDate.CheckinDate = "01/07/2024"
	badDate.Weekday = ""

	noDate := testutil.NewAggregate(5, 1, 0)
	noDate.CheckinDate = ""
	noDate.Weekday = ""

	wrongWeekday := testutil.NewAggregate(5, 1, 0)
	wrongWeekday.Weekday = "Friday"

	noClientID := testutil.WithClients(testutil.NewAggregate(5, 1, 0), "")

	noIP := testutil.WithIPs(testutil.NewAggregate(5, 0, 1), "")

	negativeStay := testutil.NewAggregate(5, 1, 0)
	negativeStay.AvgStayDuration = -0.5

	tests := []struct {
		name      string
		batch     []model.SearchAggregate
		wantIndex int
		wantField string
	}{
		{"conservation violated", []model.SearchAggregate{conservation}, 0, "total_searches"},
		{"negative count", []model.SearchAggregate{negative}, 0, "client_searches"},
		{"malformed date", []model.SearchAggregate{badDate}, 0, "checkin_date"},
		{"missing date", []model.SearchAggregate{noDate}, 0, "checkin_date"},
		{"weekday mismatch", []model.SearchAggregate{wrongWeekday}, 0, "weekday"},
		{"client without id", []model.SearchAggregate{noClientID}, 0, "searching_clients[0].client_id"},
		{"ip without address", []model.SearchAggregate{noIP}, 0, "searching_ips[0].ip_address"},
		{"negative stay", []model.SearchAggregate{negativeStay}, 0, "avg_stay_duration"},
		{"duplicate date", []model.SearchAggregate{testutil.NewAggregate(5, 1, 0), testutil.NewAggregate(5, 2, 0)}, 1, "checkin_date"},
		{"second aggregate bad", []model.SearchAggregate{testutil.NewAggregate(4, 1, 0), conservation}, 1, "total_searches"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.batch)

			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("expected errors.Is(err, ErrValidation)")
			}
			if valErr.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", valErr.Index, tt.wantIndex)
			}
			if valErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", valErr.Field, tt.wantField)
			}
			if valErr.CheckinDate != tt.batch[tt.wantIndex].CheckinDate {
				t.Errorf("CheckinDate = %s, want %s", valErr.CheckinDate, tt.batch[tt.wantIndex].CheckinDate)
			}
		})
	}
}

func TestValidate_RejectsMissingCountsFromJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`[{"checkin_date": "2024-07-01", "weekday": "Monday", "total_searches": 3, "client_searches": 3}]`)

	var batch []model.SearchAggregate
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	err := Validate(batch)

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if valErr.Field != "anonymous_searches" {
		t.Errorf("Field = %s, want anonymous_searches", valErr.Field)
	}
	if valErr.CheckinDate != "2024-07-01" {
		t.Errorf("CheckinDate = %s, want 2024-07-01", valErr.CheckinDate)
	}
}

func TestValidate_WeekdayIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	agg := testutil.NewAggregate(5, 1, 0) // 2024-07-01, a Monday
	agg.Weekday = "monday"

	if err := Validate([]model.SearchAggregate{agg}); err != nil {
		t.Fatalf("expected lowercase weekday to be accepted, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	agg := testutil.NewAggregate(5, 1, 0)
	agg.Weekday = ""
	agg.DaysUntilCheckin = 99
	agg.SearchingClients = nil
	agg.SearchingIPs = nil
	input := []model.SearchAggregate{agg}

	out := Normalize(input, testutil.Now)

	if out[0].Weekday != "Monday" {
		t.Errorf("Weekday = %s, want Monday", out[0].Weekday)
	}
	if out[0].DaysUntilCheckin != 5 {
		t.Errorf("DaysUntilCheckin = %d, want 5", out[0].DaysUntilCheckin)
	}
	if out[0].SearchingClients == nil || out[0].SearchingIPs == nil {
		t.Error("expected nil lists to become empty lists")
	}
	if input[0].DaysUntilCheckin != 99 || input[0].Weekday != "" {
		t.Error("Normalize must not modify its input")
	}
}

func TestNormalize_CopiesNestedLists(t *testing.T) {
	t.Parallel()

	input := []model.SearchAggregate{
		testutil.WithIPs(testutil.WithClients(testutil.NewAggregate(5, 1, 1), "c1"), "1.2.3.4"),
	}

	out := Normalize(input, testutil.Now)
	out[0].SearchingClients[0].ClientID = "changed"
	out[0].SearchingIPs[0].Properties[0] = "changed"

	if input[0].SearchingClients[0].ClientID != "c1" {
		t.Error("client list must be copied")
	}
	if input[0].SearchingIPs[0].Properties[0] != "Casa Azul" {
		t.Error("ip property list must be copied")
	}
}

func TestDaysUntil_IgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	checkin := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"midnight", time.Date(2024, 6, 26, 0, 0, 0, 0, time.UTC), 5},
		{"late evening", time.Date(2024, 6, 26, 23, 59, 59, 0, time.UTC), 5},
		{"same day", time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC), 0},
		{"day after", time.Date(2024, 7, 2, 8, 0, 0, 0, time.UTC), -1},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DaysUntil(checkin, tt.now); got != tt.want {
				t.Errorf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestApplyWindow(t *testing.T) {
	t.Parallel()

	past := testutil.NewAggregate(-1, 1, 0)
	past.DaysUntilCheckin = -1

	batch := []model.SearchAggregate{
		past,
		testutil.NewAggregate(0, 1, 0),
		testutil.WithIPs(testutil.NewAggregate(3, 2, 4), "1.1.1.1", "2.2.2.2"),
		testutil.NewAggregate(10, 1, 0),
		testutil.NewAggregate(11, 1, 0),
	}

	t.Run("days ahead is inclusive and past dates drop out", func(t *testing.T) {
		t.Parallel()

		out := ApplyWindow(batch, model.WindowConfig{DaysAhead: 10, Limit: 100, IncludeAnonymous: true})
		if len(out) != 3 {
			t.Fatalf("expected 3 aggregates, got %d", len(out))
		}
		if out[0].DaysUntilCheckin != 0 || out[2].DaysUntilCheckin != 10 {
			t.Errorf("unexpected window: %d..%d", out[0].DaysUntilCheckin, out[2].DaysUntilCheckin)
		}
	})

	t.Run("limit keeps batch order", func(t *testing.T) {
		t.Parallel()

		out := ApplyWindow(batch, model.WindowConfig{DaysAhead: 30, Limit: 2, IncludeAnonymous: true})
		if len(out) != 2 {
			t.Fatalf("expected 2 aggregates, got %d", len(out))
		}
		if out[0].DaysUntilCheckin != 0 || out[1].DaysUntilCheckin != 3 {
			t.Errorf("unexpected order: %d, %d", out[0].DaysUntilCheckin, out[1].DaysUntilCheckin)
		}
	})

	t.Run("excluding anonymous keeps counts conserved", func(t *testing.T) {
		t.Parallel()

		out := ApplyWindow(batch, model.WindowConfig{DaysAhead: 30, Limit: 100, IncludeAnonymous: false})
		agg := out[1]
		if agg.TotalSearches != 2 || agg.AnonymousSearches != 0 || len(agg.SearchingIPs) != 0 {
			t.Errorf("unexpected anonymous stripping: %+v", agg)
		}
		if agg.ClientSearches+agg.AnonymousSearches != agg.TotalSearches {
			t.Error("conservation broken by window")
		}
		if batch[2].TotalSearches != 6 || len(batch[2].SearchingIPs) != 2 {
			t.Error("ApplyWindow must not modify its input")
		}
	})
}
