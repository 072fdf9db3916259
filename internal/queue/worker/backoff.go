package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// ExponentialBackoff doubles from 2s per attempt, caps at 5m and adds up to
// 250ms of jitter so retries from many workers do not line up.
func ExponentialBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	capDelay := 5 * time.Minute

	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.IntN(250)) * time.Millisecond
	return delay
}
