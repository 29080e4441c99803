package service

import (
	"math"
	"time"
)

const (
	backoffBase        = time.Second
	backoffCap         = 30 * time.Second
	backoffFloor       = 200 * time.Millisecond
	backoffJitterRatio = 0.2
)

// backoffDelay returns the wait after failed attempt n (1-based): 1s doubling
// per attempt up to 30s, with uniform jitter of ±10% and a 200ms floor.
// randFloat must return values in [0, 1).
func backoffDelay(attempt int, randFloat func() float64) time.Duration {
	attempt = max(attempt, 1)

	expMillis := float64(backoffCap.Milliseconds())
	if attempt <= 16 {
		expMillis = math.Min(expMillis, float64(backoffBase.Milliseconds())*math.Pow(2, float64(attempt-1)))
	}

	jitterMillis := expMillis * backoffJitterRatio * (randFloat() - 0.5)
	delay := time.Duration(math.Round(expMillis+jitterMillis)) * time.Millisecond

	return max(delay, backoffFloor)
}
