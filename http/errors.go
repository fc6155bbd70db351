package http

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ClientError represents different types of REST client errors
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	CanceledError    ErrorType = "canceled"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

// networkError is a failed exchange that produced no response.
type networkError struct {
	message string
	code    string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

// Code returns the transport error code, e.g. ECONNRESET.
func (e *networkError) Code() string {
	return e.code
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// timeoutError is an attempt that ran out of its per-request timeout.
type timeoutError struct {
	message string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType {
	return TimeoutError
}

func (e *timeoutError) Code() string {
	return CodeTimeout
}

func (e *timeoutError) Timeout() time.Duration {
	return e.timeout
}

func (e *timeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// canceledError is a request abandoned by its caller.
type canceledError struct {
	message string
	wrapped error
}

func (e *canceledError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("canceled: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("canceled: %s", e.message)
}

func (e *canceledError) Type() ErrorType {
	return CanceledError
}

func (e *canceledError) Code() string {
	return CodeCanceled
}

func (e *canceledError) Unwrap() error {
	return e.wrapped
}

// httpError represents HTTP status-related errors
type httpError struct {
	message  string
	response *Response
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.response.StatusCode)
}

func (e *httpError) Type() ErrorType {
	return HTTPError
}

// Code is ERR_BAD_RESPONSE for 5xx statuses and ERR_BAD_REQUEST otherwise.
func (e *httpError) Code() string {
	if e.response.StatusCode >= 500 {
		return CodeBadResponse
	}
	return CodeBadRequest
}

func (e *httpError) StatusCode() int {
	return e.response.StatusCode
}

func (e *httpError) Body() []byte {
	return e.response.Body
}

// Response returns the response that failed the status check.
func (e *httpError) Response() *Response {
	return e.response
}

// validationError represents request validation errors
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

// interceptorError represents hook-related errors
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorError
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// NewNetworkError creates a new network error. The transport code is derived from wrapped.
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{
		message: message,
		code:    TransportErrorCode(wrapped),
		wrapped: wrapped,
	}
}

// NewNetworkErrorWithCode creates a network error with an explicit transport code.
// Custom transports use it to report failures Go has no error value for.
func NewNetworkErrorWithCode(message, code string, wrapped error) ClientError {
	return &networkError{
		message: message,
		code:    code,
		wrapped: wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{
		message: message,
		timeout: timeout,
	}
}

// NewCanceledError creates a new cancellation error
func NewCanceledError(message string, wrapped error) ClientError {
	return &canceledError{
		message: message,
		wrapped: wrapped,
	}
}

// NewHTTPError creates a new HTTP error carrying the offending response
func NewHTTPError(message string, resp *Response) ClientError {
	return &httpError{
		message:  message,
		response: resp,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		wrapped: wrapped,
		stage:   stage,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// ErrorCode returns the code of the first error in err's chain that has one,
// or "" when there is none.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// ResponseFromError returns the response carried by an HTTP status error, or
// nil when the exchange produced no response.
func ResponseFromError(err error) *Response {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.response
	}
	return nil
}
