package retry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/httpretry/http"
	"github.com/gaborage/httpretry/logger"
)

// Span and event names
const (
	SpanRetry  = "http.retry"
	EventRetry = "http.retry"

	attrRetryAttempt        = "http.retry.attempt"
	attrRetryDelayMs        = "http.retry.delay_ms"
	attrRetryClassification = "http.retry.classification"
)

// engine decides what happens to a failed request: retry it through the same
// client, or let the failure through.
type engine struct {
	client   http.Client
	resolver *Resolver
	log      logger.Logger
	metrics  *metrics
	tracer   oteltrace.Tracer
	clock    Clock
	limiter  *rate.Limiter
}

func newEngine(client http.Client, o *options, instance []Option) *engine {
	m, err := newMetrics(o.meterProvider)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to create retry metrics, continuing without them")
		m = noopMetrics()
	}
	return &engine{
		client:   client,
		resolver: NewResolver(o.clock, instance...),
		log:      o.logger,
		metrics:  m,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		clock:    o.clock,
		limiter:  o.limiter,
	}
}

// onRequest attaches the retry state of req to the context of the attempt.
func (e *engine) onRequest(ctx context.Context, req *http.Request) (context.Context, error) {
	ctx, _ = e.resolver.Resolve(ctx, req)
	return ctx, nil
}

// onError handles a failed attempt. It returns either the outcome of a retry
// or err unchanged.
func (e *engine) onError(ctx context.Context, req *http.Request, err error) (*http.Response, error) {
	if IsCancellation(err) {
		e.log.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("HTTP request canceled, not retrying")
		return nil, err
	}

	ctx, state := e.resolver.Resolve(ctx, req)
	policy := state.Policy
	attrs := metric.WithAttributes(semconv.HTTPRequestMethodKey.String(req.Method))

	if !e.eligible(ctx, state, req, err) {
		if state.Attempt >= policy.MaxAttempts {
			e.exhausted(ctx, state, req, err, attrs)
		}
		return nil, err
	}

	state.Attempt++
	attempt := state.Attempt
	delay := max(policy.Delay(attempt, err), 0)
	req.ResetDefaultTransport()

	if !policy.PreserveTimeoutBudget && state.Budget > 0 {
		budget := AdjustTimeoutBudget(state.Budget, state.FirstAttempt, delay, e.clock.Now())
		if !budget.Proceed {
			e.metrics.budgetExhausted.Add(ctx, 1, attrs)
			e.log.Warn().
				Str("method", req.Method).
				Str("url", req.URL).
				Int("attempt", attempt).
				Dur("budget", state.Budget).
				Dur("delay", delay).
				Err(err).
				Msg("HTTP request timeout budget exhausted, not retrying")
			return nil, err
		}
		req.Timeout = budget.Timeout
	}

	// The body was already transformed for the first attempt.
	req.TransformBody = nil

	if policy.OnRetry != nil {
		if hookErr := policy.OnRetry(ctx, attempt, err, req); hookErr != nil {
			return nil, hookErr
		}
	}

	class := Classify(err)
	e.log.Warn().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("attempt", attempt).
		Int("max_attempts", policy.MaxAttempts).
		Dur("delay", delay).
		Str("classification", class.String()).
		Err(err).
		Msg("Retrying HTTP request")
	e.metrics.attempts.Add(ctx, 1, attrs)
	e.metrics.delay.Record(ctx, float64(delay)/float64(time.Millisecond), attrs)
	logger.IncrementHTTPRetries(ctx)
	logger.AddHTTPRetryDelay(ctx, delay)

	spanAttrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(req.Method),
		attribute.Int(attrRetryAttempt, attempt),
		attribute.Int64(attrRetryDelayMs, delay.Milliseconds()),
		attribute.String(attrRetryClassification, class.String()),
	}
	oteltrace.SpanFromContext(ctx).AddEvent(EventRetry, oteltrace.WithAttributes(spanAttrs...))

	if waitErr := e.wait(ctx, delay); waitErr != nil {
		return nil, waitErr
	}

	ctx, span := e.tracer.Start(ctx, SpanRetry,
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(spanAttrs...),
	)
	defer span.End()

	resp, resendErr := e.client.Resend(ctx, req)
	if resendErr != nil {
		span.RecordError(resendErr)
		span.SetStatus(codes.Error, resendErr.Error())
	}
	return resp, resendErr
}

// eligible evaluates the attempt bound, the retry condition and the rate limit.
func (e *engine) eligible(ctx context.Context, state *State, req *http.Request, err error) bool {
	if state.Attempt >= state.Policy.MaxAttempts {
		return false
	}

	ok, condErr := state.Policy.Condition(ctx, req, err)
	if condErr != nil {
		e.log.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Err(condErr).
			Msg("Retry condition failed, not retrying")
		return false
	}
	if !ok {
		e.log.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Str("classification", Classify(err).String()).
			Err(err).
			Msg("HTTP request not eligible for retry")
		return false
	}

	if e.limiter != nil && !e.limiter.Allow() {
		e.log.Warn().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("Retry rate limit reached, not retrying")
		return false
	}
	return true
}

func (e *engine) exhausted(ctx context.Context, state *State, req *http.Request, err error, attrs metric.MeasurementOption) {
	e.metrics.exhausted.Add(ctx, 1, attrs)
	e.log.Error().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("attempts", state.Attempt).
		Dur("elapsed", e.clock.Now().Sub(state.FirstAttempt)).
		Err(err).
		Msg("HTTP request failed after all retries")

	if state.Policy.OnExhausted != nil {
		state.Policy.OnExhausted(ctx, err, state.Attempt)
	}
}

// wait blocks for d or until ctx is done.
func (e *engine) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return http.NewCanceledError("retry delay interrupted", ctx.Err())
	case <-e.clock.After(d):
		return nil
	}
}
