package http

import (
	"context"
	nethttp "net/http"
	"time"
)

// Client defines the REST client interface for making HTTP requests
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Head(ctx context.Context, req *Request) (*Response, error)
	Options(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)

	// Resend runs a request that already went through Do once more through
	// the full hook chain. Response error hooks use it to reissue the request
	// they are handling; the returned outcome replaces the failure.
	Resend(ctx context.Context, req *Request) (*Response, error)

	// Hooks returns the hook registry shared by every request of this client.
	Hooks() *Hooks

	// Transport returns the default transport requests are sent through.
	Transport() nethttp.RoundTripper
}

// Request represents an HTTP request with all necessary data.
//
// Do never mutates the caller's Request. It works on a copy with the client
// defaults merged in, and that copy is what hooks receive and what Resend
// accepts. Hooks may adjust the copy between attempts.
type Request struct {
	// Method is filled in by Do.
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth

	// Timeout bounds a single attempt. Zero means the client timeout;
	// a negative value disables the per-attempt timeout.
	Timeout time.Duration

	// Transport overrides the client transport for this request.
	Transport nethttp.RoundTripper

	// TransformBody runs after the request hooks, right before sending.
	// Its output replaces Body, so a resent request must not transform again.
	TransformBody func(body []byte, headers map[string]string) ([]byte, error)

	prepared         bool
	defaultTransport bool
}

// ResetDefaultTransport drops a transport that was copied from the client
// defaults, so the next Resend picks up whatever the client uses at that
// point. A transport set explicitly on the request is kept.
func (r *Request) ResetDefaultTransport() {
	if r.defaultTransport {
		r.Transport = nil
		r.defaultTransport = false
	}
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats

	// Request is the prepared request that produced this response.
	Request *Request
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestHook is called before every attempt. The returned context, when not
// nil, replaces ctx for the rest of the attempt including the response hooks,
// which lets hooks attach request-scoped values. An error aborts the request
// without running the response hooks.
type RequestHook func(ctx context.Context, req *Request) (context.Context, error)

// ResponseHook is called with a successful (2xx) response. Returning an error
// turns the outcome into a failure for the hooks registered after it.
type ResponseHook func(ctx context.Context, req *Request, resp *Response) (*Response, error)

// ErrorHook is called with a failed exchange. Returning a nil error recovers
// the request with the returned response.
type ErrorHook func(ctx context.Context, req *Request, err error) (*Response, error)

// Config holds the REST client configuration
type Config struct {
	Timeout        time.Duration
	BasicAuth      *BasicAuth
	DefaultHeaders map[string]string

	// TraceIDHeader is added to every request that does not set it.
	TraceIDHeader    string
	NewTraceID       func() string
	TraceIDExtractor func(ctx context.Context) (string, bool)
	EnableW3CTrace   bool

	// LogPayloads logs headers and bodies at debug level, truncated to MaxPayloadLogBytes.
	LogPayloads        bool
	MaxPayloadLogBytes int
}
