package retry

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gaborage/httpretry/http"
)

// Classification is the category of a failed exchange.
type Classification int

const (
	// Unclassified failures carry neither a response nor a transport code.
	Unclassified Classification = iota
	// Transient failures received no response, e.g. a connection reset or DNS failure.
	Transient
	// ServerError failures received a 5xx response.
	ServerError
	// ClientError failures received a 4xx response.
	ClientError
	// Cancelled failures were aborted by the caller and are never retried.
	Cancelled
	// SecurityError failures are TLS or certificate validation errors and are never retried.
	SecurityError
)

func (c Classification) String() string {
	switch c {
	case Transient:
		return "transient"
	case ServerError:
		return "server_error"
	case ClientError:
		return "client_error"
	case Cancelled:
		return "cancelled"
	case SecurityError:
		return "security_error"
	default:
		return "unclassified"
	}
}

// CertificateErrorCodes lists the TLS and certificate error codes that are
// never treated as transient, even though they produce no response.
var CertificateErrorCodes = []string{
	"UNABLE_TO_GET_ISSUER_CERT",
	"UNABLE_TO_GET_CRL",
	"UNABLE_TO_DECRYPT_CERT_SIGNATURE",
	"UNABLE_TO_DECRYPT_CRL_SIGNATURE",
	"UNABLE_TO_DECODE_ISSUER_PUBLIC_KEY",
	http.CodeCertSignatureFailure,
	"CRL_SIGNATURE_FAILURE",
	"CERT_NOT_YET_VALID",
	http.CodeCertHasExpired,
	"CRL_NOT_YET_VALID",
	"CRL_HAS_EXPIRED",
	"ERROR_IN_CERT_NOT_BEFORE_FIELD",
	"ERROR_IN_CERT_NOT_AFTER_FIELD",
	"ERROR_IN_CRL_LAST_UPDATE_FIELD",
	"ERROR_IN_CRL_NEXT_UPDATE_FIELD",
	"OUT_OF_MEM",
	http.CodeSelfSignedCert,
	"SELF_SIGNED_CERT_IN_CHAIN",
	http.CodeUnableToGetIssuerLocally,
	http.CodeUnableToVerifyLeaf,
	http.CodeCertChainTooLong,
	"CERT_REVOKED",
	http.CodeInvalidCA,
	"PATH_LENGTH_EXCEEDED",
	http.CodeInvalidPurpose,
	"CERT_UNTRUSTED",
	http.CodeCertRejected,
	http.CodeHostnameMismatch,
}

var certificateCodes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(CertificateErrorCodes))
	for _, code := range CertificateErrorCodes {
		m[code] = struct{}{}
	}
	return m
}()

// IsCertificateErrorCode reports whether code is a TLS or certificate error code.
func IsCertificateErrorCode(code string) bool {
	_, ok := certificateCodes[code]
	return ok
}

// IsCancellation reports whether err is an explicit cancellation.
func IsCancellation(err error) bool {
	return http.ErrorCode(err) == http.CodeCanceled || errors.Is(err, context.Canceled)
}

// IsNetworkError reports whether err is a transient network failure: no
// response was received, the transport reported a code, and that code is
// neither a cancellation, an attempt timeout nor a certificate error.
func IsNetworkError(err error) bool {
	if err == nil || http.ResponseFromError(err) != nil {
		return false
	}
	code := http.ErrorCode(err)
	switch code {
	case "", http.CodeCanceled, http.CodeTimeout:
		return false
	}
	return !IsCertificateErrorCode(code)
}

// IsRetryableError reports whether err is worth retrying regardless of the
// request method: it is not a cancellation or a certificate error, and either
// no response was received or the response status is 5xx.
func IsRetryableError(err error) bool {
	if err == nil || IsCancellation(err) || IsCertificateErrorCode(http.ErrorCode(err)) {
		return false
	}
	resp := http.ResponseFromError(err)
	return resp == nil || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
}

// IsSafeMethod reports whether method is GET, HEAD or OPTIONS.
func IsSafeMethod(method string) bool {
	switch method {
	case nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodOptions:
		return true
	}
	return false
}

// IsIdempotentMethod reports whether method is safe, PUT or DELETE.
func IsIdempotentMethod(method string) bool {
	return IsSafeMethod(method) || method == nethttp.MethodPut || method == nethttp.MethodDelete
}

// IsSafeRequestError reports whether err is retryable and req uses a safe method.
func IsSafeRequestError(req *http.Request, err error) bool {
	return req != nil && IsSafeMethod(req.Method) && IsRetryableError(err)
}

// IsIdempotentRequestError reports whether err is retryable and req uses an idempotent method.
func IsIdempotentRequestError(req *http.Request, err error) bool {
	return req != nil && IsIdempotentMethod(req.Method) && IsRetryableError(err)
}

// IsNetworkOrIdempotentRequestError is the default retry condition.
func IsNetworkOrIdempotentRequestError(_ context.Context, req *http.Request, err error) (bool, error) {
	return IsNetworkError(err) || IsIdempotentRequestError(req, err), nil
}

// Classify categorizes a failed exchange.
func Classify(err error) Classification {
	if err == nil {
		return Unclassified
	}
	if IsCancellation(err) {
		return Cancelled
	}
	if IsCertificateErrorCode(http.ErrorCode(err)) {
		return SecurityError
	}
	if resp := http.ResponseFromError(err); resp != nil {
		switch {
		case resp.StatusCode >= 500 && resp.StatusCode <= 599:
			return ServerError
		case resp.StatusCode >= 400 && resp.StatusCode <= 499:
			return ClientError
		}
		return Unclassified
	}
	if IsNetworkError(err) {
		return Transient
	}
	return Unclassified
}
