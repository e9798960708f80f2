package indexing

import "time"

// backoff returns the retry delay before the given attempt number re-runs:
// base doubled per prior failed attempt, capped. attempt is 1-based.
func backoff(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
