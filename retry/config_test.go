package retry

import (
	"context"
	nethttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/httpretry/config"
	"github.com/gaborage/httpretry/http"
)

func TestFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := newOptions(FromConfig(config.RetryConfig{
			MaxAttempts: 3,
			Backoff:     config.BackoffConfig{Strategy: config.BackoffNone},
		})...)

		assert.Equal(t, 3, o.policy.MaxAttempts)
		assert.False(t, o.policy.PreserveTimeoutBudget)
		assert.Zero(t, o.policy.Delay(4, nil))
		assert.Nil(t, o.limiter)
	})

	t.Run("exponential backoff with rate limit", func(t *testing.T) {
		o := newOptions(FromConfig(config.RetryConfig{
			MaxAttempts:           5,
			PreserveTimeoutBudget: true,
			Backoff: config.BackoffConfig{
				Strategy: config.BackoffExponential,
				Base:     50 * time.Millisecond,
			},
			RateLimit: config.RateLimitConfig{Enabled: true, PerSecond: 2.5, Burst: 4},
		})...)

		assert.Equal(t, 5, o.policy.MaxAttempts)
		assert.True(t, o.policy.PreserveTimeoutBudget)

		d := o.policy.Delay(2, nil)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 240*time.Millisecond)

		require.NotNil(t, o.limiter)
		assert.Equal(t, 4, o.limiter.Burst())
		assert.InDelta(t, 2.5, float64(o.limiter.Limit()), 0.0001)
	})
}

func TestFromConfigCanBeOverriddenPerRequest(t *testing.T) {
	transport := script(nethttp.StatusServiceUnavailable)
	client := newTestClient(transport)
	Bind(client, FromConfig(config.RetryConfig{MaxAttempts: 4})...)

	_, err := client.Get(context.Background(), &http.Request{URL: testURL})
	require.Error(t, err)
	assert.Equal(t, 5, transport.Calls())

	ctx := WithRequestOptions(context.Background(), WithMaxAttempts(1))
	_, err = client.Get(ctx, &http.Request{URL: testURL})
	require.Error(t, err)
	assert.Equal(t, 7, transport.Calls())
}
