package callback

import (
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

type Backoff interface {
	// Delay returns how long to wait before the given retry, or false once
	// no retry is left.
	Delay(retry uint) (time.Duration, bool)
}

type noRetry struct{}

func NoRetry() Backoff {
	return noRetry{}
}

func (noRetry) Delay(uint) (time.Duration, bool) {
	return 0, false
}

// Jitter maps an upper bound to a wait in [0, n).
type Jitter func(n int64) int64

type exponentialBackoff struct {
	base       time.Duration
	max        time.Duration
	maxRetries uint
	jitter     Jitter
}

// ExponentialBackoff waits base*2^retry capped at max, with full jitter
// unless a jitter function is given.
func ExponentialBackoff(base time.Duration, max time.Duration, maxRetries uint, jitter Jitter) Backoff {
	return &exponentialBackoff{
		base:       base,
		max:        max,
		maxRetries: maxRetries,
		jitter:     jitter,
	}
}

func (b *exponentialBackoff) Delay(retry uint) (time.Duration, bool) {
	if retry >= b.maxRetries {
		return 0, false
	}

	ceiling := int64(b.max)
	if retry < 63 {
		if delay, ok := checkedMul(int64(1)<<retry, int64(b.base)); ok {
			ceiling = clamp(delay, 0, int64(b.max))
		}
	}
	return time.Duration(b.jitterOrDefault()(ceiling)), true
}

func (b *exponentialBackoff) jitterOrDefault() Jitter {
	if b.jitter != nil {
		return b.jitter
	}
	return func(n int64) int64 {
		if n <= 0 {
			return 0
		}
		return rand.Int63n(n)
	}
}

func clamp[T constraints.Ordered](v T, lo T, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// checkedMul multiplies non-negative operands, reporting overflow.
func checkedMul(l int64, r int64) (int64, bool) {
	if l == 0 || r == 0 {
		return 0, true
	}
	if l > math.MaxInt64/r {
		return 0, false
	}
	return l * r, true
}
