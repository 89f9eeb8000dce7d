package retry

import (
	"math/rand/v2"
	"time"
)

// BackoffFunc returns the delay to wait after the given failed attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Linear waits attempt*step plus a random jitter in [0, jitter).
func Linear(step, jitter time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		delay := time.Duration(attempt) * step
		if jitter > 0 {
			delay += rand.N(jitter)
		}
		return delay
	}
}

// Constant always waits d.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration {
		return d
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration {
	return 0
}
