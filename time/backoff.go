package time

import (
	"time"
)

// Backoff produces jittered, exponentially growing delays for retry
// loops. The zero value is not useful; set Initial and Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64 // +/- ratio applied to each delay, e.g. 0.2

	next time.Duration
}

// Next returns the delay to wait before the upcoming attempt.
func (b *Backoff) Next() time.Duration {
	if b.next == 0 {
		b.next = b.Initial
	}
	out := b.next

	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}

	if b.Jitter > 0 {
		out = DurationRatio(out, b.Jitter)
	}
	return out
}

// Reset makes the next delay start from Initial again. Call it after a
// successful attempt.
func (b *Backoff) Reset() {
	b.next = 0
}
