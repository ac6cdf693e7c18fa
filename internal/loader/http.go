package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rentaldash/searchdemand/internal/model"
)

const (
	// UpcomingCheckinsPath is the source endpoint listing upcoming check-in aggregates.
	UpcomingCheckinsPath = "/api/analytics/upcoming-checkins"

	// DefaultTimeout is the total per-attempt request timeout.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a source response is read.
	maxBodyBytes = 16 << 20
)

// HTTPConfig configures an HTTPLoader.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration

	// MaxAttempts bounds attempts per Load, including the first one.
	MaxAttempts int
	// RetryDelays are the base delays before each retry; the last one repeats.
	RetryDelays []time.Duration

	// BreakerFailures consecutive failures open the breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultHTTPConfig returns the settings used against the dashboard API.
func DefaultHTTPConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:         baseURL,
		Timeout:         DefaultTimeout,
		MaxAttempts:     DefaultMaxAttempts,
		RetryDelays:     GetRetryDelays(),
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// HTTPLoader reads aggregates from the dashboard REST API.
type HTTPLoader struct {
	config  HTTPConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]model.SearchAggregate]
	logger  *slog.Logger
}

// statusError is a non-2xx answer from the source.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

// NewHTTPLoader creates an HTTPLoader.
func NewHTTPLoader(cfg HTTPConfig, logger *slog.Logger) *HTTPLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = GetRetryDelays()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	l := &HTTPLoader{
		config: cfg,
		client: NewHTTPClient(cfg.Timeout),
		logger: logger.With("component", "loader.http"),
	}

	l.breaker = gobreaker.NewCircuitBreaker[[]model.SearchAggregate](gobreaker.Settings{
		Name:    "aggregate-source",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A caller giving up says nothing about the source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return l
}

// Load fetches the batch for cfg, retrying transient failures with backoff.
// Every failure is reported as ErrSourceUnavailable wrapping the last cause.
func (l *HTTPLoader) Load(ctx context.Context, cfg model.WindowConfig, _ time.Time) ([]model.SearchAggregate, error) {
	endpoint, err := l.endpoint(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var lastErr error
	for attempt := 0; attempt < l.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := NextRetryDelay(l.config.RetryDelays, attempt-1)
			l.logger.Debug("retrying aggregate source",
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		batch, err := l.breaker.Execute(func() ([]model.SearchAggregate, error) {
			return l.fetch(ctx, endpoint)
		})
		if err == nil {
			return batch, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	l.logger.Error("aggregate source failed", "url", endpoint, "error", lastErr)
	return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, lastErr)
}

func (l *HTTPLoader) endpoint(cfg model.WindowConfig) (string, error) {
	u, err := url.Parse(l.config.BaseURL + UpcomingCheckinsPath)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}

	q := u.Query()
	q.Set("days_ahead", strconv.Itoa(cfg.DaysAhead))
	q.Set("limit", strconv.Itoa(cfg.Limit))
	q.Set("include_anonymous", strconv.FormatBool(cfg.IncludeAnonymous))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (l *HTTPLoader) fetch(ctx context.Context, endpoint string) ([]model.SearchAggregate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request source: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode}
	}

	return DecodeBatch(body)
}

// batchEnvelope is the wrapped form some endpoints answer with.
type batchEnvelope struct {
	Data []model.SearchAggregate `json:"data"`
}

// DecodeBatch accepts either a bare JSON array of aggregates or {"data": [...]}.
func DecodeBatch(body []byte) ([]model.SearchAggregate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	switch trimmed[0] {
	case '[':
		var batch []model.SearchAggregate
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("decode aggregate array: %w", err)
		}
		return batch, nil
	case '{':
		var envelope batchEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode aggregate envelope: %w", err)
		}
		return envelope.Data, nil
	default:
		return nil, errors.New("response is neither an array nor an object")
	}
}

// isRetryable reports whether another attempt could succeed.
func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500 || statusErr.status == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
