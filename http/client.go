package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gaborage/httpretry/config"
	"github.com/gaborage/httpretry/logger"
	"github.com/gaborage/httpretry/trace"
)

const (
	// DefaultTimeout is the default per-attempt request timeout
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPayloadLogBytes caps logged bodies when payload logging is enabled
	DefaultMaxPayloadLogBytes = 1024
)

// client implements the Client interface
type client struct {
	httpClient *nethttp.Client
	transport  nethttp.RoundTripper
	// tracedTransport wraps transport when tracing is enabled.
	tracedTransport nethttp.RoundTripper
	tracingOpts     []otelhttp.Option
	tracing         bool
	logger          logger.Logger
	config          *Config
	hooks           *Hooks
	callCount       int64
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

func defaultConfig() *Config {
	return &Config{
		Timeout:            DefaultTimeout,
		DefaultHeaders:     make(map[string]string),
		TraceIDHeader:      HeaderXRequestID,
		NewTraceID:         trace.NewID,
		TraceIDExtractor:   trace.IDFromContext,
		EnableW3CTrace:     true,
		MaxPayloadLogBytes: DefaultMaxPayloadLogBytes,
	}
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config        *Config
	logger        logger.Logger
	httpClient    *nethttp.Client
	transport     nethttp.RoundTripper
	timeoutSet    bool
	tracing       bool
	tracingOpts   []otelhttp.Option
	requestHooks  []RequestHook
	responseHooks []responseEntry
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithConfig applies the http section of the service configuration.
func (b *Builder) WithConfig(cfg config.HTTPConfig) *Builder {
	if cfg.Timeout > 0 {
		b.WithTimeout(cfg.Timeout)
	}
	for key, value := range cfg.Headers {
		b.WithDefaultHeader(key, value)
	}
	b.WithTraceIDHeader(cfg.TraceIDHeader)
	if cfg.LogPayloads {
		b.WithPayloadLogging(cfg.MaxPayloadLogBytes)
	}
	if cfg.Tracing {
		b.WithTracing()
	}
	return b
}

// WithTimeout sets the default per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	b.timeoutSet = true
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[nethttp.CanonicalHeaderKey(key)] = value
	return b
}

// WithHTTPClient uses a preconfigured net/http client for redirects, cookies
// and transport. Its Timeout, when set and WithTimeout is not used, becomes
// the default per-attempt timeout.
func (b *Builder) WithHTTPClient(hc *nethttp.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithTransport sets the default transport, overriding the one of WithHTTPClient.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithTraceIDHeader changes the request id header. Empty keeps the default.
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	if header != "" {
		b.config.TraceIDHeader = header
	}
	return b
}

// WithTraceIDGenerator sets how request ids are generated. nil keeps the default.
func (b *Builder) WithTraceIDGenerator(gen func() string) *Builder {
	if gen != nil {
		b.config.NewTraceID = gen
	}
	return b
}

// WithTraceIDExtractor sets how request ids are read from the context. nil keeps the default.
func (b *Builder) WithTraceIDExtractor(extract func(ctx context.Context) (string, bool)) *Builder {
	if extract != nil {
		b.config.TraceIDExtractor = extract
	}
	return b
}

// WithW3CTrace toggles traceparent/tracestate propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithPayloadLogging logs request and response headers and bodies at debug
// level. maxBytes <= 0 keeps the default cap.
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithTracing instruments every attempt with an OpenTelemetry client span.
// Without options the global tracer provider and propagator are used.
func (b *Builder) WithTracing(opts ...otelhttp.Option) *Builder {
	b.tracing = true
	b.tracingOpts = append(b.tracingOpts, opts...)
	return b
}

// WithRequestHook registers a request hook on the built client
func (b *Builder) WithRequestHook(hook RequestHook) *Builder {
	b.requestHooks = append(b.requestHooks, hook)
	return b
}

// WithResponseHook registers a response hook pair on the built client
func (b *Builder) WithResponseHook(onSuccess ResponseHook, onError ErrorHook) *Builder {
	b.responseHooks = append(b.responseHooks, responseEntry{onSuccess: onSuccess, onError: onError})
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	hc := &nethttp.Client{}
	if b.httpClient != nil {
		custom := *b.httpClient
		hc = &custom
	}
	if hc.Timeout > 0 && !b.timeoutSet {
		b.config.Timeout = hc.Timeout
	}
	// Per-attempt timeouts are applied through the request context.
	hc.Timeout = 0

	transport := b.transport
	if transport == nil {
		transport = hc.Transport
	}
	if transport == nil {
		transport = nethttp.DefaultTransport
	}

	log := b.logger
	if log == nil {
		log = logger.Nop()
	}

	c := &client{
		httpClient:  hc,
		transport:   transport,
		tracing:     b.tracing,
		tracingOpts: b.tracingOpts,
		logger:      log,
		config:      b.config,
		hooks:       &Hooks{},
	}
	if c.tracing {
		c.tracedTransport = otelhttp.NewTransport(transport, c.tracingOpts...)
	}
	for _, hook := range b.requestHooks {
		c.hooks.OnRequest(hook)
	}
	for _, e := range b.responseHooks {
		c.hooks.OnResponse(e.onSuccess, e.onError)
	}
	return c
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Head performs a HEAD request
func (c *client) Head(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodHead, req)
}

// Options performs an OPTIONS request
func (c *client) Options(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodOptions, req)
}

func (c *client) Hooks() *Hooks {
	return c.hooks
}

func (c *client) Transport() nethttp.RoundTripper {
	return c.transport
}

// Do performs an HTTP request with the specified method. For non-2xx statuses
// it returns both the response and an HTTP error.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}
	return c.execute(ctx, c.prepare(ctx, method, req))
}

func (c *client) Resend(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}
	if !req.prepared {
		return c.Do(ctx, req.Method, req)
	}
	c.applyDefaultTransport(req)
	return c.execute(ctx, req)
}

// execute runs one attempt: request hooks, body transform, the exchange, then
// the response hooks in order. A request hook or transform failure is returned
// as is, without consulting the response hooks.
func (c *client) execute(ctx context.Context, req *Request) (*Response, error) {
	requestHooks, responseHooks := c.hooks.snapshot()

	for _, e := range requestHooks {
		next, err := e.hook(ctx, req)
		if err != nil {
			return nil, NewInterceptorError("request hook failed", "request", err)
		}
		if next != nil {
			ctx = next
		}
	}

	if req.TransformBody != nil {
		body, err := req.TransformBody(req.Body, req.Headers)
		if err != nil {
			return nil, NewInterceptorError("body transform failed", "transform", err)
		}
		req.Body = body
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, httpReq)
	for _, e := range responseHooks {
		switch {
		case err == nil && e.onSuccess != nil:
			resp, err = e.onSuccess(ctx, req, resp)
		case err != nil && e.onError != nil:
			resp, err = e.onError(ctx, req, err)
		}
	}

	if err != nil && resp == nil {
		resp = ResponseFromError(err)
	}
	return resp, err
}

// send performs a single exchange bounded by the request timeout.
func (c *client) send(ctx context.Context, req *Request, httpReq *nethttp.Request) (*Response, error) {
	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)
	c.logRequest(req)

	attemptCtx, cancel := attemptContext(ctx, req.Timeout)
	defer cancel()

	hc := *c.httpClient
	hc.Transport = c.roundTripper(req)

	httpResp, err := hc.Do(httpReq.WithContext(attemptCtx))
	if err != nil {
		return nil, c.exchangeError(ctx, attemptCtx, req, "request execution failed", err)
	}

	resp, err := c.buildResponse(start, callCount, req, httpResp)
	if err != nil {
		return nil, c.exchangeError(ctx, attemptCtx, req, "failed to read response body", err)
	}
	c.logResponse(req, resp)

	if !IsSuccessStatus(resp.StatusCode) {
		return nil, NewHTTPError(fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode), resp)
	}
	return resp, nil
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// exchangeError classifies a failed exchange. The caller's context wins over
// the attempt timeout, which wins over the transport error.
func (c *client) exchangeError(ctx, attemptCtx context.Context, req *Request, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return NewCanceledError(message, ctxErr)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError(fmt.Sprintf("timeout of %v exceeded", req.Timeout), req.Timeout)
	}
	return NewNetworkError(message, err)
}

func (c *client) roundTripper(req *Request) nethttp.RoundTripper {
	if req.defaultTransport {
		if c.tracedTransport != nil {
			return c.tracedTransport
		}
		return c.transport
	}
	if c.tracing {
		return otelhttp.NewTransport(req.Transport, c.tracingOpts...)
	}
	return req.Transport
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	if _, err := url.Parse(req.URL); err != nil {
		return NewValidationError(fmt.Sprintf("invalid URL: %v", err), "url")
	}
	return nil
}

// prepare copies req and merges the client defaults into the copy.
// Request values take precedence over defaults.
func (c *client) prepare(ctx context.Context, method string, req *Request) *Request {
	if method == "" {
		method = req.Method
	}
	if method == "" {
		method = nethttp.MethodGet
	}

	r := &Request{
		Method:        strings.ToUpper(method),
		URL:           req.URL,
		Headers:       make(map[string]string, len(c.config.DefaultHeaders)+len(req.Headers)+3),
		Body:          req.Body,
		Auth:          req.Auth,
		Timeout:       req.Timeout,
		Transport:     req.Transport,
		TransformBody: req.TransformBody,
		prepared:      true,
	}

	maps.Copy(r.Headers, c.config.DefaultHeaders)
	for key, value := range req.Headers {
		r.Headers[nethttp.CanonicalHeaderKey(key)] = value
	}
	if r.Auth == nil {
		r.Auth = c.config.BasicAuth
	}
	if r.Timeout == 0 {
		r.Timeout = c.config.Timeout
	}

	c.applyTraceHeaders(ctx, r)
	c.applyDefaultTransport(r)
	return r
}

func (c *client) applyDefaultTransport(req *Request) {
	if req.Transport == nil {
		req.Transport = c.transport
		req.defaultTransport = true
	}
}

// buildRequest constructs an *http.Request with headers and auth applied.
func (c *client) buildRequest(ctx context.Context, req *Request) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to create HTTP request: %v", err), "request")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Auth != nil {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}
	return httpReq, nil
}

// buildResponse reads the body and builds a Response.
func (c *client) buildResponse(start time.Time, callCount int64, req *Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
		Request: req,
	}, nil
}

// logRequest logs the outgoing request
func (c *client) logRequest(req *Request) {
	requestID, _ := headerValue(req.Headers, c.config.TraceIDHeader)
	c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL).
		Str("request_id", requestID).
		Msg("REST client request")

	if !c.config.LogPayloads {
		return
	}
	logEvent := c.logger.Debug().
		Str("direction", "outbound").
		Interface("headers", req.Headers)
	if len(req.Body) > 0 {
		logEvent = logEvent.Bytes("body", c.truncate(req.Body))
	}
	logEvent.Msg("REST client request payload")
}

// logResponse logs the incoming response
func (c *client) logResponse(req *Request, resp *Response) {
	c.logger.Info().
		Str("direction", "inbound").
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Msg("REST client response")

	if !c.config.LogPayloads {
		return
	}
	logEvent := c.logger.Debug().
		Str("direction", "inbound").
		Interface("headers", map[string][]string(resp.Headers))
	if len(resp.Body) > 0 {
		logEvent = logEvent.Bytes("body", c.truncate(resp.Body))
	}
	logEvent.Msg("REST client response payload")
}

func (c *client) truncate(body []byte) []byte {
	if max := c.config.MaxPayloadLogBytes; max > 0 && len(body) > max {
		return body[:max]
	}
	return body
}
