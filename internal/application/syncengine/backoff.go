package syncengine

import "time"

// Backoff espera exponencial base*2^attempt con tope en max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return max
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
