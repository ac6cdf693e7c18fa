// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/model"
)

// Aggregate sources.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Backing services. REDIS_URL is optional; without it reports are not cached.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// Aggregate source
	AggregateSource        string        `env:"AGGREGATE_SOURCE" envDefault:"postgres"`
	AggregateSourceURL     string        `env:"AGGREGATE_SOURCE_URL"`
	AggregateSourceTimeout time.Duration `env:"AGGREGATE_SOURCE_TIMEOUT" envDefault:"10s"`

	ReportCacheTTL time.Duration `env:"REPORT_CACHE_TTL" envDefault:"5m"`

	// Window defaults for requests that omit them
	DefaultDaysAhead        int  `env:"DEFAULT_DAYS_AHEAD" envDefault:"30"`
	DefaultLimit            int  `env:"DEFAULT_LIMIT" envDefault:"100"`
	DefaultIncludeAnonymous bool `env:"DEFAULT_INCLUDE_ANONYMOUS" envDefault:"true"`

	// Report thresholds
	HighDemandThreshold  int `env:"HIGH_DEMAND_THRESHOLD" envDefault:"5"`
	RepeatMinOccurrences int `env:"REPEAT_MIN_OCCURRENCES" envDefault:"2"`
	AlertMaxDaysOut      int `env:"ALERT_MAX_DAYS_OUT" envDefault:"30"`
	AlertMinSearches     int `env:"ALERT_MIN_SEARCHES" envDefault:"3"`

	// Comma-separated list of allowed origins (e.g., "https://dash.example.com,*.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// WindowDefaults returns the window applied when a request sets nothing.
func (c *Config) WindowDefaults() model.WindowConfig {
	return model.WindowConfig{
		DaysAhead:        c.DefaultDaysAhead,
		Limit:            c.DefaultLimit,
		IncludeAnonymous: c.DefaultIncludeAnonymous,
	}
}

// Thresholds returns the configured report thresholds.
func (c *Config) Thresholds() demand.Thresholds {
	return demand.Thresholds{
		HighDemand:           c.HighDemandThreshold,
		RepeatMinOccurrences: c.RepeatMinOccurrences,
		AlertMaxDaysOut:      c.AlertMaxDaysOut,
		AlertMinSearches:     c.AlertMinSearches,
	}
}

// Validate checks settings that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.AggregateSource {
	case SourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres aggregate source"))
		}
	case SourceHTTP:
		if c.AggregateSourceURL == "" {
			errs = append(errs, errors.New("AGGREGATE_SOURCE_URL is required for the http aggregate source"))
		}
	default:
		errs = append(errs, fmt.Errorf("AGGREGATE_SOURCE must be %q or %q, got %q", SourcePostgres, SourceHTTP, c.AggregateSource))
	}

	if err := demand.ValidateConfig(c.WindowDefaults()); err != nil {
		errs = append(errs, fmt.Errorf("default window: %w", err))
	}

	positive := map[string]int{
		"HIGH_DEMAND_THRESHOLD":  c.HighDemandThreshold,
		"REPEAT_MIN_OCCURRENCES": c.RepeatMinOccurrences,
		"ALERT_MIN_SEARCHES":     c.AlertMinSearches,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.AlertMaxDaysOut < 0 {
		errs = append(errs, fmt.Errorf("ALERT_MAX_DAYS_OUT must not be negative, got %d", c.AlertMaxDaysOut))
	}
	if c.ReportCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_CACHE_TTL must be positive, got %s", c.ReportCacheTTL))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom is Load over an explicit environment instead of the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
