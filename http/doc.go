// Package http provides a small, composable HTTP client with request and
// response hooks, default headers, basic auth and request-id propagation.
//
// Hooks
//   - Request hooks run before every attempt, in registration order, and may
//     modify the request or return a derived context.
//   - Response hooks come in (onSuccess, onError) pairs. The outcome of each
//     pair feeds the next one, so an error hook can recover a failure and a
//     success hook can reject a response.
//   - Hooks().OnRequest and Hooks().OnResponse return integer handles taken
//     from one counter; RemoveRequest and RemoveResponse unregister them.
//
// Requests
//   - Do works on a copy of the caller's Request with the client defaults
//     merged in. Hooks receive that copy and Resend accepts it, which is how
//     error hooks reissue a request through the full chain.
//   - Request.Timeout bounds a single attempt. Zero uses the client timeout and
//     a negative value disables it.
//
// Errors
//   - Non-2xx statuses return both the response and an HTTP error.
//   - Failures without a response carry a transport code (ErrorCode), e.g.
//     ECONNRESET, ECONNABORTED for attempt timeouts, ERR_CANCELED for caller
//     cancellation, or certificate codes such as CERT_HAS_EXPIRED.
//   - Request hook and body transform failures are interceptor errors. They
//     are returned as is and never reach the response hooks.
//
// This package does not retry; see package retry.
package http
