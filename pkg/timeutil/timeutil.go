package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest value in durations, or zero for an
// empty slice. It does not mutate its input.
func MaxDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	max := durations[0]
	for _, d := range durations[1:] {
		if d > max {
			max = d
		}
	}
	return max
}

// ComputeJitter returns a pseudo-random duration in [0, max) using rng.
// Non-positive max always returns 0.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay computes initial*(multiplier^(backoffCount-1)),
// capped at param.maxDuration, plus a uniform jitter in [0, jitter).
// backoffCount <= 0 is treated as 1.
func ExponentialBackoffDelay(backoffCount int, jitter time.Duration, rng rand.Rand, param BackoffParam) time.Duration {
	if backoffCount < 1 {
		backoffCount = 1
	}

	exponent := float64(backoffCount - 1)
	delay := float64(param.initialDuration) * math.Pow(param.multiplier, exponent)
	if max := float64(param.maxDuration); delay > max {
		delay = max
	}

	if jitter > 0 {
		delay += float64(ComputeJitter(jitter, rng))
	}

	return time.Duration(delay)
}
