package logger

import (
	"context"
	"sync/atomic"
	"time"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// httpRetryCounterKey tracks outbound HTTP retries performed while serving one inbound request
	httpRetryCounterKey contextKey = "http_retry_counter"
	// httpRetryDelayKey tracks the total backoff delay spent on those retries
	httpRetryDelayKey contextKey = "http_retry_delay_nanos"
)

// WithHTTPCounter creates a new context with an outbound retry counter and delay tracker.
// Servers attach it per inbound request so access logs can report how much
// time was spent backing off against upstreams.
func WithHTTPCounter(ctx context.Context) context.Context {
	counter := int64(0)
	delay := int64(0)
	ctx = context.WithValue(ctx, httpRetryCounterKey, &counter)
	ctx = context.WithValue(ctx, httpRetryDelayKey, &delay)
	return ctx
}

// IncrementHTTPRetries increments the outbound retry counter in the context
func IncrementHTTPRetries(ctx context.Context) {
	if counter, ok := ctx.Value(httpRetryCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetHTTPRetries returns the current outbound retry count from the context
func GetHTTPRetries(ctx context.Context) int64 {
	if counter, ok := ctx.Value(httpRetryCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddHTTPRetryDelay adds backoff delay to the tracker in the context
func AddHTTPRetryDelay(ctx context.Context, d time.Duration) {
	if delay, ok := ctx.Value(httpRetryDelayKey).(*int64); ok && delay != nil {
		atomic.AddInt64(delay, int64(d))
	}
}

// GetHTTPRetryDelay returns the accumulated backoff delay from the context
func GetHTTPRetryDelay(ctx context.Context) time.Duration {
	if delay, ok := ctx.Value(httpRetryDelayKey).(*int64); ok && delay != nil {
		return time.Duration(atomic.LoadInt64(delay))
	}
	return 0
}
