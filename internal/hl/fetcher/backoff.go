package fetcher

import (
	"math"
	"math/rand"
	"time"
)

// fullJitterBackoff returns a randomized delay for retry attempt n
// (0-indexed), per the full-jitter scheme: a uniform draw
// between 0 and min(max, base*2^n).
func fullJitterBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	upper := float64(base) * math.Pow(2, float64(attempt))
	if upper > float64(max) || upper <= 0 {
		upper = float64(max)
	}
	return time.Duration(rand.Int63n(int64(upper) + 1))
}
