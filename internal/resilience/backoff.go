package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base doubled per attempt after the first, spread by
// ±jitter (a fraction, 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
