package retry

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/gaborage/httpretry/observability"
)

const instrumentationName = "github.com/gaborage/httpretry/retry"

// Metric names
const (
	MetricRetryAttempts        = "http.client.retry.attempts"
	MetricRetryExhausted       = "http.client.retry.exhausted"
	MetricRetryBudgetExhausted = "http.client.retry.budget_exhausted"
	MetricRetryDelay           = "http.client.retry.delay"
)

type metrics struct {
	attempts        metric.Int64Counter
	exhausted       metric.Int64Counter
	budgetExhausted metric.Int64Counter
	delay           metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)

	attempts, err := observability.CreateCounter(meter, MetricRetryAttempts,
		"Retries issued after a failed attempt", metric.WithUnit("{retry}"))
	if err != nil {
		return nil, err
	}
	exhausted, err := observability.CreateCounter(meter, MetricRetryExhausted,
		"Requests that failed after using all their retries", metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	budgetExhausted, err := observability.CreateCounter(meter, MetricRetryBudgetExhausted,
		"Retries skipped because the timeout budget was spent", metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	delay, err := observability.CreateHistogram(meter, MetricRetryDelay,
		"Delay waited before a retry", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		attempts:        attempts,
		exhausted:       exhausted,
		budgetExhausted: budgetExhausted,
		delay:           delay,
	}, nil
}

func noopMetrics() *metrics {
	m, _ := newMetrics(noop.NewMeterProvider())
	return m
}
