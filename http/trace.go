package http

import (
	"context"
	"strings"

	"github.com/gaborage/httpretry/trace"
)

// Trace header names, re-exported for callers that only import this package.
const (
	HeaderXRequestID  = trace.HeaderXRequestID
	HeaderTraceParent = trace.HeaderTraceParent
	HeaderTraceState  = trace.HeaderTraceState
)

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return trace.WithTraceID(ctx, traceID)
}

// GetTraceIDFromContext returns the trace ID in ctx, generating one when absent.
func GetTraceIDFromContext(ctx context.Context) string {
	return trace.EnsureTraceID(ctx)
}

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return trace.WithTraceParent(ctx, traceParent)
}

// WithTraceState adds a W3C tracestate value to the context
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return trace.WithTraceState(ctx, traceState)
}

// NewTraceIDHook returns a request hook that sets X-Request-ID from the context trace ID.
func NewTraceIDHook() RequestHook {
	return NewTraceIDHookFor(HeaderXRequestID)
}

// NewTraceIDHookFor returns a request hook that sets header from the context
// trace ID unless the request already carries it.
func NewTraceIDHookFor(header string) RequestHook {
	return func(ctx context.Context, req *Request) (context.Context, error) {
		if _, ok := headerValue(req.Headers, header); ok {
			return ctx, nil
		}
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		req.Headers[header] = trace.EnsureTraceID(ctx)
		return ctx, nil
	}
}

// applyTraceHeaders fills in request id and W3C headers once per logical
// request, so every retry is sent with the same ids.
func (c *client) applyTraceHeaders(ctx context.Context, req *Request) {
	header := c.config.TraceIDHeader
	if _, ok := headerValue(req.Headers, header); !ok {
		id, found := c.config.TraceIDExtractor(ctx)
		if !found {
			id = c.config.NewTraceID()
		}
		req.Headers[header] = id
	}

	if !c.config.EnableW3CTrace {
		return
	}
	if _, ok := headerValue(req.Headers, HeaderTraceParent); !ok {
		req.Headers[HeaderTraceParent] = trace.ParentFor(ctx)
	}
	if _, ok := headerValue(req.Headers, HeaderTraceState); !ok {
		if ts, found := trace.StateFromContext(ctx); found {
			req.Headers[HeaderTraceState] = ts
		}
	}
}

// headerValue looks a header up case-insensitively.
func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
