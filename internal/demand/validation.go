package demand

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rentaldash/searchdemand/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator, reporting fields by their JSON names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

var reasonTemplates = map[string]string{
	"required": "is required",
	"datetime": "must be a date formatted as %s",
	"gte":      "must be greater than or equal to %s",
	"gt":       "must be greater than %s",
}

// translate turns a validator field error into a field path and a human-readable reason.
func translate(fe validator.FieldError) (string, string) {
	// Namespace is "SearchAggregate.searching_clients[0].client_id"; drop the struct name.
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	reason := "failed " + fe.Tag() + " check"
	if tmpl, ok := reasonTemplates[fe.Tag()]; ok {
		if strings.Contains(tmpl, "%s") {
			reason = fmt.Sprintf(tmpl, fe.Param())
		} else {
			reason = tmpl
		}
	}
	return field, reason
}

// ValidateConfig rejects window configurations outside sane bounds.
func ValidateConfig(cfg model.WindowConfig) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ConfigurationError{Field: "config", Reason: err.Error()}
	}
	field, reason := translate(fieldErrs[0])
	return &ConfigurationError{Field: field, Reason: reason}
}

// Validate checks every aggregate in the batch and fails on the first malformed one.
// It never repairs counts: a batch that violates conservation is rejected as a whole.
func Validate(aggs []model.SearchAggregate) error {
	seen := make(map[string]int, len(aggs))

	for i := range aggs {
		if err := validateAggregate(i, &aggs[i]); err != nil {
			return err
		}

		date := aggs[i].CheckinDate
		if first, dup := seen[date]; dup {
			return &ValidationError{
				Index:       i,
				CheckinDate: date,
				Field:       "checkin_date",
				Reason:      fmt.Sprintf("duplicates aggregate[%d]", first),
			}
		}
		seen[date] = i
	}

	return nil
}

func validateAggregate(index int, agg *model.SearchAggregate) error {
	if missing := agg.MissingFields(); len(missing) > 0 {
		return &ValidationError{Index: index, CheckinDate: agg.CheckinDate, Field: missing[0], Reason: "is required"}
	}

	if err := getValidator().Struct(agg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return &ValidationError{Index: index, CheckinDate: agg.CheckinDate, Field: "aggregate", Reason: err.Error()}
		}
		field, reason := translate(fieldErrs[0])
		return &ValidationError{Index: index, CheckinDate: agg.CheckinDate, Field: field, Reason: reason}
	}

	if agg.ClientSearches+agg.AnonymousSearches != agg.TotalSearches {
		return &ValidationError{
			Index:       index,
			CheckinDate: agg.CheckinDate,
			Field:       "total_searches",
			Reason: fmt.Sprintf("(%d) does not equal client_searches + anonymous_searches (%d + %d)",
				agg.TotalSearches, agg.ClientSearches, agg.AnonymousSearches),
		}
	}

	if agg.Weekday != "" {
		date, _ := agg.Date() // format already checked by the datetime tag
		if want := date.Weekday().String(); !strings.EqualFold(agg.Weekday, want) {
			return &ValidationError{
				Index:       index,
				CheckinDate: agg.CheckinDate,
				Field:       "weekday",
				Reason:      fmt.Sprintf("%q does not match check-in date (%s)", agg.Weekday, want),
			}
		}
	}

	return nil
}

// Normalize returns a deep copy of a validated batch with defaults applied once:
// nil lists become empty, weekday labels are canonical, and days_until_checkin is
// recomputed against now.
func Normalize(aggs []model.SearchAggregate, now time.Time) []model.SearchAggregate {
	out := make([]model.SearchAggregate, len(aggs))

	for i, agg := range aggs {
		date, _ := agg.Date()

		agg.Weekday = date.Weekday().String()
		agg.DaysUntilCheckin = DaysUntil(date, now)
		agg.SearchingClients = append(make([]model.SearchingClient, 0, len(agg.SearchingClients)), agg.SearchingClients...)
		agg.SearchingIPs = copyIPs(agg.SearchingIPs)

		out[i] = agg
	}

	return out
}

func copyIPs(ips []model.SearchingIP) []model.SearchingIP {
	out := make([]model.SearchingIP, len(ips))
	for i, ip := range ips {
		ip.CheckoutDates = append(make([]string, 0, len(ip.CheckoutDates)), ip.CheckoutDates...)
		ip.GuestsCounts = append(make([]int, 0, len(ip.GuestsCounts)), ip.GuestsCounts...)
		ip.Properties = append(make([]string, 0, len(ip.Properties)), ip.Properties...)
		out[i] = ip
	}
	return out
}

// ApplyWindow keeps the aggregates a window configuration considers: check-in dates
// between today and days_ahead inclusive, at most limit of them in batch order, with
// anonymous activity removed when include_anonymous is off.
// The batch must already be normalized against the same now.
func ApplyWindow(aggs []model.SearchAggregate, cfg model.WindowConfig) []model.SearchAggregate {
	out := make([]model.SearchAggregate, 0, min(len(aggs), cfg.Limit))

	for _, agg := range aggs {
		if len(out) >= cfg.Limit {
			break
		}
		if agg.DaysUntilCheckin < 0 || agg.DaysUntilCheckin > cfg.DaysAhead {
			continue
		}
		if !cfg.IncludeAnonymous {
			agg.TotalSearches -= agg.AnonymousSearches
			agg.AnonymousSearches = 0
			agg.SearchingIPs = []model.SearchingIP{}
		}
		out = append(out, agg)
	}

	return out
}

// startOfDay truncates now to its calendar date, expressed in UTC so it compares with
// check-in dates parsed from YYYY-MM-DD.
func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns whole days from now's calendar date to date.
func DaysUntil(date, now time.Time) int {
	return int(date.Sub(startOfDay(now)).Hours() / 24)
}
