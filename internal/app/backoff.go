package app

import (
	"math/rand"
	"time"
)

// BackoffDelay computes the wait before retry number attempt (1-based):
// base doubled per attempt, capped at max, with up to 25% random jitter
// added to decorrelate competing retriers. The deterministic portion is a
// pure function of the attempt count.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := backoffBase(attempt, base, max)
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func backoffBase(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Millisecond
	}
	if max < base {
		max = base
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
