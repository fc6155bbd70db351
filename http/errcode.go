package http

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// Error codes reported by ErrorCode. Transport codes follow the names used by
// the BSD socket layer and OpenSSL so that deny-lists written for other HTTP
// stacks apply unchanged.
const (
	CodeCanceled    = "ERR_CANCELED"
	CodeTimeout     = "ECONNABORTED"
	CodeNetwork     = "ERR_NETWORK"
	CodeBadResponse = "ERR_BAD_RESPONSE"
	CodeBadRequest  = "ERR_BAD_REQUEST"

	CodeConnReset       = "ECONNRESET"
	CodeConnRefused     = "ECONNREFUSED"
	CodeTimedOut        = "ETIMEDOUT"
	CodeBrokenPipe      = "EPIPE"
	CodeHostUnreachable = "EHOSTUNREACH"
	CodeNetUnreachable  = "ENETUNREACH"
	CodeNotFound        = "ENOTFOUND"
	CodeDNSTryAgain     = "EAI_AGAIN"

	CodeCertHasExpired           = "CERT_HAS_EXPIRED"
	CodeCertRejected             = "CERT_REJECTED"
	CodeCertChainTooLong         = "CERT_CHAIN_TOO_LONG"
	CodeCertSignatureFailure     = "CERT_SIGNATURE_FAILURE"
	CodeInvalidCA                = "INVALID_CA"
	CodeInvalidPurpose           = "INVALID_PURPOSE"
	CodeHostnameMismatch         = "HOSTNAME_MISMATCH"
	CodeSelfSignedCert           = "DEPTH_ZERO_SELF_SIGNED_CERT"
	CodeUnableToVerifyLeaf       = "UNABLE_TO_VERIFY_LEAF_SIGNATURE"
	CodeUnableToGetIssuerLocally = "UNABLE_TO_GET_ISSUER_CERT_LOCALLY"
)

// TransportErrorCode maps an error returned by a round trip to a transport
// error code. Errors that match no known cause map to ERR_NETWORK; nil maps to "".
func TransportErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}

	if code := certificateCode(err); code != "" {
		return code
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if code, ok := errnoCodes[errno]; ok {
			return code
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return CodeDNSTryAgain
		}
		return CodeNotFound
	}

	// The server closed the connection before a full response ("socket hang up").
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeConnReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimedOut
	}

	return CodeNetwork
}

var errnoCodes = map[syscall.Errno]string{
	syscall.ECONNRESET:   CodeConnReset,
	syscall.ECONNREFUSED: CodeConnRefused,
	syscall.ETIMEDOUT:    CodeTimedOut,
	syscall.EPIPE:        CodeBrokenPipe,
	syscall.EHOSTUNREACH: CodeHostUnreachable,
	syscall.ENETUNREACH:  CodeNetUnreachable,
}

func certificateCode(err error) string {
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return CodeHostnameMismatch
	}

	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		if cert := authErr.Cert; cert != nil && bytes.Equal(cert.RawIssuer, cert.RawSubject) {
			return CodeSelfSignedCert
		}
		return CodeUnableToVerifyLeaf
	}

	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		switch invalidErr.Reason {
		case x509.Expired:
			return CodeCertHasExpired
		case x509.NotAuthorizedToSign:
			return CodeInvalidCA
		case x509.TooManyIntermediates:
			return CodeCertChainTooLong
		case x509.IncompatibleUsage:
			return CodeInvalidPurpose
		case x509.NameMismatch:
			return CodeHostnameMismatch
		default:
			return CodeCertRejected
		}
	}

	var rootsErr x509.SystemRootsError
	if errors.As(err, &rootsErr) {
		return CodeUnableToGetIssuerLocally
	}

	var algErr x509.InsecureAlgorithmError
	if errors.As(err, &algErr) {
		return CodeCertSignatureFailure
	}

	var constraintErr x509.ConstraintViolationError
	if errors.As(err, &constraintErr) {
		return CodeCertRejected
	}

	return ""
}
