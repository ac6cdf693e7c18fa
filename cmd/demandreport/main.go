// Package main is a command-line front end that builds a search-demand report
// from an aggregate batch stored in a file.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/loader"
	"github.com/rentaldash/searchdemand/internal/model"
)

var version = "dev"

type options struct {
	in               string
	out              string
	daysAhead        int
	limit            int
	includeAnonymous bool
	now              string
	verbose          bool
	thresholds       demand.Thresholds
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := options{thresholds: demand.DefaultThresholds()}

	cmd := &cobra.Command{
		Use:   "demandreport",
		Short: "Build a search-demand report from an aggregate batch",
		Long: `Reads a batch of per-date search aggregates (a JSON array or {"data": [...]})
and writes the analytics report as indented JSON.

  demandreport --in upcoming.json --days-ahead 14 --now 2024-06-26`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(opts, stdin, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.in, "in", "-", "aggregate batch file, - for stdin")
	flags.StringVar(&opts.out, "out", "-", "report output file, - for stdout")
	flags.IntVar(&opts.daysAhead, "days-ahead", 30, "window size in days from today")
	flags.IntVar(&opts.limit, "limit", 100, "maximum number of check-in dates")
	flags.BoolVar(&opts.includeAnonymous, "include-anonymous", true, "count searches from visitors without a client account")
	flags.StringVar(&opts.now, "now", "", "reference time, RFC 3339 or YYYY-MM-DD (default current time)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log a summary to stderr")
	flags.IntVar(&opts.thresholds.HighDemand, "high-demand-threshold", opts.thresholds.HighDemand, "searches needed for a high-demand date")
	flags.IntVar(&opts.thresholds.RepeatMinOccurrences, "repeat-min-occurrences", opts.thresholds.RepeatMinOccurrences, "searches needed for a repeated client")
	flags.IntVar(&opts.thresholds.AlertMaxDaysOut, "alert-max-days-out", opts.thresholds.AlertMaxDaysOut, "latest check-in distance that can alert")
	flags.IntVar(&opts.thresholds.AlertMinSearches, "alert-min-searches", opts.thresholds.AlertMinSearches, "searches needed for an alert")

	return cmd
}

func run(opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	now, err := parseNow(opts.now)
	if err != nil {
		return err
	}

	raw, err := readInput(opts.in, stdin)
	if err != nil {
		return err
	}

	batch, err := loader.DecodeBatch(raw)
	if err != nil {
		return fmt.Errorf("decode batch: %w", err)
	}

	cfg := model.WindowConfig{
		DaysAhead:        opts.daysAhead,
		Limit:            opts.limit,
		IncludeAnonymous: opts.includeAnonymous,
	}

	start := time.Now()
	report, err := demand.NewEngine(opts.thresholds).BuildReport(cfg, batch, now)
	if err != nil {
		return err
	}
	logger.Info("report built",
		"aggregates", len(batch),
		"high_demand_dates", len(report.HighDemandDates),
		"alerts", len(report.DemandAlerts),
		"duration", time.Since(start),
	)

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	body = append(body, '\n')

	return writeOutput(opts.out, stdout, body)
}

// parseNow accepts RFC 3339 timestamps and plain dates; an empty value means the current time.
func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: want RFC 3339 or YYYY-MM-DD", value)
	}
	return t, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}

func writeOutput(path string, stdout io.Writer, body []byte) error {
	if path == "-" {
		_, err := stdout.Write(body)
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
