package loader

import (
	"math/rand"
	"time"
)

// Retry delays for exponential backoff between attempts against the source.
var retryDelays = []time.Duration{
	200 * time.Millisecond,
	1 * time.Second,
}

const (
	// DefaultMaxAttempts is the default number of attempts per load.
	DefaultMaxAttempts = 3

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// NextRetryDelay picks the delay after the given 0-indexed failed attempt from
// delays, with jitter. Attempts past the end reuse the last delay.
func NextRetryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}

	base := delays[attempt]

	// Add ±20% jitter so concurrent requests do not retry in lockstep
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// GetRetryDelays returns the default retry delays.
func GetRetryDelays() []time.Duration {
	return append([]time.Duration{}, retryDelays...)
}
