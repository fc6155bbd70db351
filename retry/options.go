package retry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/httpretry/http"
	"github.com/gaborage/httpretry/logger"
)

// DefaultMaxAttempts is the library default number of retries.
const DefaultMaxAttempts = 3

// ConditionFunc decides whether a failed request may be retried. A non-nil
// error makes the request ineligible.
type ConditionFunc func(ctx context.Context, req *http.Request, err error) (bool, error)

// OnRetryFunc runs before a request is resubmitted. A non-nil error aborts the
// retry and is returned to the caller.
type OnRetryFunc func(ctx context.Context, attempt int, err error, req *http.Request) error

// OnExhaustedFunc runs once when a request ran out of retries. It cannot
// change the error returned to the caller.
type OnExhaustedFunc func(ctx context.Context, err error, attempt int)

// Policy is the effective retry configuration of one request.
type Policy struct {
	// MaxAttempts is the number of retries after the original attempt.
	MaxAttempts int
	Condition   ConditionFunc
	Delay       DelayFunc
	// PreserveTimeoutBudget leaves the request timeout untouched across
	// retries. By default each retry only gets what is left of the timeout
	// the request started with.
	PreserveTimeoutBudget bool
	OnRetry               OnRetryFunc
	OnExhausted           OnExhaustedFunc
}

// DefaultPolicy returns the library defaults: 3 retries of network errors and
// idempotent requests, without delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Condition:   IsNetworkOrIdempotentRequestError,
		Delay:       NoDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	if p.Condition == nil {
		p.Condition = IsNetworkOrIdempotentRequestError
	}
	if p.Delay == nil {
		p.Delay = NoDelay
	}
	return p
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Option configures Bind. Policy options are also accepted per request by
// WithRequestOptions; binding options are ignored there.
type Option func(*options)

type options struct {
	policy         Policy
	logger         logger.Logger
	meterProvider  metric.MeterProvider
	tracerProvider oteltrace.TracerProvider
	clock          Clock
	limiter        *rate.Limiter
}

func newOptions(opts ...Option) *options {
	o := &options{
		policy: DefaultPolicy(),
		logger: logger.Nop(),
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.clock == nil {
		o.clock = systemClock{}
	}
	return o
}

// WithMaxAttempts sets the number of retries after the original attempt.
// Negative values mean no retries.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.policy.MaxAttempts = n
	}
}

// WithCondition replaces the default retry condition.
func WithCondition(condition ConditionFunc) Option {
	return func(o *options) {
		o.policy.Condition = condition
	}
}

// WithDelay sets how long to wait before each retry.
func WithDelay(delay DelayFunc) Option {
	return func(o *options) {
		o.policy.Delay = delay
	}
}

// WithExponentialBackoff waits 2^attempt * base plus up to 20% jitter.
func WithExponentialBackoff(base time.Duration) Option {
	return WithDelay(NewExponentialBackoff(base, nil).Delay)
}

// WithPreserveTimeoutBudget disables shrinking the request timeout across retries.
func WithPreserveTimeoutBudget(preserve bool) Option {
	return func(o *options) {
		o.policy.PreserveTimeoutBudget = preserve
	}
}

// WithOnRetry sets the hook run before each resubmission.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(o *options) {
		o.policy.OnRetry = fn
	}
}

// WithOnExhausted sets the hook run when a request runs out of retries.
func WithOnExhausted(fn OnExhaustedFunc) Option {
	return func(o *options) {
		o.policy.OnExhausted = fn
	}
}

// WithLogger sets the logger used for retry decisions.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithMeterProvider sets where retry metrics are recorded. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithTracerProvider sets the provider of retry spans. Defaults to the global provider.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRetryRateLimit caps retries across all requests of the binding. A
// retry the limiter does not allow right away is treated as ineligible.
// The limiter may be shared between bindings.
func WithRetryRateLimit(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

type requestOptionsKey struct{}

// WithRequestOptions returns a context whose requests use opts on top of the
// options given to Bind. Nested calls accumulate; later options win.
func WithRequestOptions(ctx context.Context, opts ...Option) context.Context {
	existing, _ := ctx.Value(requestOptionsKey{}).([]Option)
	merged := make([]Option, 0, len(existing)+len(opts))
	merged = append(merged, existing...)
	merged = append(merged, opts...)
	return context.WithValue(ctx, requestOptionsKey{}, merged)
}

func requestOptions(ctx context.Context) []Option {
	opts, _ := ctx.Value(requestOptionsKey{}).([]Option)
	return opts
}
