// Package time has small duration helpers for jittered retries.
package time

import (
	rand "math/rand/v2"
	"time"
)

// DurationRange returns a random duration in [low,high).
func DurationRange(low time.Duration, high time.Duration) time.Duration {
	delta := int64(high - low)
	if delta <= 0 {
		return low
	}
	return low + time.Duration(rand.Int64N(delta))
}

// DurationRatio spreads the value by +/- the given ratio. For -/+ 5%,
// pass 0.05.
func DurationRatio(value time.Duration, by float64) time.Duration {
	i := time.Duration(float64(value) * by)
	return DurationRange(value-i, value+i)
}
