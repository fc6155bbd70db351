package retry

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffBounds(t *testing.T) {
	b := NewExponentialBackoff(100*time.Millisecond, rand.NewPCG(42, 7))

	prev := time.Duration(0)
	for k := 1; k <= 10; k++ {
		nominal := b.Nominal(k)
		assert.Equal(t, time.Duration(1<<k)*100*time.Millisecond, nominal)
		assert.Greater(t, nominal, prev, "nominal delay must grow with the attempt")
		prev = nominal

		for range 50 {
			d := b.Delay(k, nil)
			assert.GreaterOrEqual(t, d, nominal)
			assert.LessOrEqual(t, d, nominal+nominal/5)
		}
	}
}

func TestExponentialBackoffIsReproducible(t *testing.T) {
	a := NewExponentialBackoff(time.Millisecond, rand.NewPCG(1, 2))
	b := NewExponentialBackoff(time.Millisecond, rand.NewPCG(1, 2))

	for k := 1; k <= 5; k++ {
		assert.Equal(t, a.Delay(k, nil), b.Delay(k, nil))
	}
}

func TestExponentialDelayDefaults(t *testing.T) {
	d := ExponentialDelay(1, nil)
	assert.GreaterOrEqual(t, d, 200*time.Millisecond)
	assert.LessOrEqual(t, d, 240*time.Millisecond)

	b := NewExponentialBackoff(0, nil)
	assert.Equal(t, 2*DefaultBaseDelay, b.Nominal(1))
}

func TestExponentialBackoffSaturates(t *testing.T) {
	b := NewExponentialBackoff(time.Hour, rand.NewPCG(3, 4))

	assert.Equal(t, time.Duration(math.MaxInt64), b.Nominal(40))
	assert.Equal(t, time.Duration(math.MaxInt64), b.Delay(1000, nil))
	require.Positive(t, b.Delay(20, nil))
}

func TestNoDelay(t *testing.T) {
	assert.Zero(t, NoDelay(1, nil))
	assert.Zero(t, NoDelay(10, nil))
}
