package retry

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// DefaultBaseDelay is the base factor of ExponentialDelay.
	DefaultBaseDelay = 100 * time.Millisecond

	jitterFactor = 0.2
	maxExponent  = 32
)

// DelayFunc computes the wait before retry number attempt (1 for the first retry).
type DelayFunc func(attempt int, err error) time.Duration

// NoDelay retries immediately.
func NoDelay(int, error) time.Duration {
	return 0
}

var defaultBackoff = NewExponentialBackoff(DefaultBaseDelay, nil)

// ExponentialDelay waits 2^attempt * 100ms plus up to 20% jitter.
func ExponentialDelay(attempt int, err error) time.Duration {
	return defaultBackoff.Delay(attempt, err)
}

// Backoff is an exponential backoff with additive jitter.
type Backoff struct {
	base time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewExponentialBackoff returns a backoff with the given base factor. base <= 0
// uses DefaultBaseDelay. A nil src uses the global random source; pass a seeded
// source for reproducible delays.
func NewExponentialBackoff(base time.Duration, src rand.Source) *Backoff {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	b := &Backoff{base: base}
	if src != nil {
		b.rng = rand.New(src)
	}
	return b
}

// Nominal returns the delay before jitter, 2^attempt * base. It saturates
// instead of overflowing.
func (b *Backoff) Nominal(attempt int) time.Duration {
	attempt = min(max(attempt, 0), maxExponent)
	if b.base > time.Duration(math.MaxInt64>>attempt) {
		return time.Duration(math.MaxInt64)
	}
	return b.base << attempt
}

// Delay returns Nominal(attempt) plus a jitter in [0, 20%) of it. It has the
// DelayFunc signature.
func (b *Backoff) Delay(attempt int, _ error) time.Duration {
	d := b.Nominal(attempt)
	jitter := time.Duration(float64(d) * jitterFactor * b.float64())
	if d > time.Duration(math.MaxInt64)-jitter {
		return time.Duration(math.MaxInt64)
	}
	return d + jitter
}

func (b *Backoff) float64() float64 {
	if b.rng == nil {
		return rand.Float64()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64()
}
