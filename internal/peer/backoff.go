package peer

import "time"

// Backoff returns the delay before reconnection attempt n (n >= 1): the base
// doubled per previous failure, capped at maxDelay, plus up to jitter.
func Backoff(n int, base, maxDelay, jitter time.Duration, randFn func(n int64) int64) time.Duration {
	if n < 1 {
		n = 1
	}

	d := base
	for i := 1; i < n && d < maxDelay; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}

	if jitter > 0 && randFn != nil {
		d += time.Duration(randFn(int64(jitter)))
	}
	return d
}
