// ABOUTME: This file defines the closed error taxonomy for backend RPC failures
// ABOUTME: Call sites branch on Kind and status, never on message text

package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind discriminates the failure classes surfaced by the RPC driver
type ErrorKind string

const (
	ErrorKindNetwork    ErrorKind = "network"    // No usable response (DNS, dial, reset, garbled body)
	ErrorKindHTTP       ErrorKind = "http"       // Non-2xx status outside the dedicated classes below
	ErrorKindProtocol   ErrorKind = "protocol"   // Application error embedded in a 200 response
	ErrorKindAuth       ErrorKind = "auth"       // Credential, token, or refresh failure
	ErrorKindValidation ErrorKind = "validation" // Backend rejected the request as unprocessable
	ErrorKindTimeout    ErrorKind = "timeout"    // Deadline exceeded before a response arrived
)

// Error is the single error type returned by the RPC driver and gateway
type Error struct {
	Kind      ErrorKind
	Status    int    // HTTP status when one was received, else 0
	Procedure string // service.method that failed
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("rpc %s failed: %s (kind=%s, status=%d)", e.Procedure, e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("rpc %s failed: %s (kind=%s)", e.Procedure, e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewNetworkError wraps a transport failure that produced no usable response
func NewNetworkError(procedure string, cause error) *Error {
	return &Error{Kind: ErrorKindNetwork, Procedure: procedure, Message: "transport failure", Cause: cause}
}

// NewTimeoutError wraps a deadline or timeout failure
func NewTimeoutError(procedure string, cause error) *Error {
	return &Error{Kind: ErrorKindTimeout, Procedure: procedure, Message: "request timed out", Cause: cause}
}

// NewHTTPError captures a non-2xx response status
func NewHTTPError(procedure string, status int, message string) *Error {
	return &Error{Kind: ErrorKindHTTP, Status: status, Procedure: procedure, Message: message}
}

// NewProtocolError captures an application-level error object from a 200 response
func NewProtocolError(procedure, message string) *Error {
	return &Error{Kind: ErrorKindProtocol, Procedure: procedure, Message: message}
}

// NewAuthError captures a credential or token failure
func NewAuthError(procedure string, status int, message string) *Error {
	return &Error{Kind: ErrorKindAuth, Status: status, Procedure: procedure, Message: message}
}

// NewValidationError captures a request the backend rejected as unprocessable
func NewValidationError(procedure string, status int, message string) *Error {
	return &Error{Kind: ErrorKindValidation, Status: status, Procedure: procedure, Message: message}
}

// ClassifyTransportError maps a failure from the HTTP client into the taxonomy
func ClassifyTransportError(procedure string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(procedure, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(procedure, err)
	}

	return NewNetworkError(procedure, err)
}

// ClassifyStatus maps a non-2xx HTTP status into the taxonomy
func ClassifyStatus(procedure string, status int, body string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return NewAuthError(procedure, status, "access token rejected")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return NewValidationError(procedure, status, truncateBody(body))
	default:
		return NewHTTPError(procedure, status, truncateBody(body))
	}
}

// IsRetryable reports whether the failure may succeed on a later attempt
func IsRetryable(err error) bool {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return false
	}

	switch rpcErr.Kind {
	case ErrorKindNetwork, ErrorKindTimeout:
		return true
	case ErrorKindHTTP:
		return rpcErr.Status == http.StatusRequestTimeout ||
			rpcErr.Status == http.StatusTooManyRequests ||
			rpcErr.Status >= http.StatusInternalServerError
	}
	return false
}

// IsAuthExpired reports whether the failure is an expired or rejected access
// token, the one terminal class that a token refresh plus replay can cure.
func IsAuthExpired(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) &&
		rpcErr.Kind == ErrorKindAuth &&
		rpcErr.Status == http.StatusUnauthorized
}

// IsTerminal reports whether retrying the same request cannot succeed
func IsTerminal(err error) bool {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return !IsRetryable(err) && !IsAuthExpired(err)
}

// KindOf extracts the error kind, or an empty string for foreign errors
func KindOf(err error) ErrorKind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return ""
}

const maxBodyInError = 256

func truncateBody(body string) string {
	if body == "" {
		return "no response body"
	}
	if len(body) > maxBodyInError {
		return body[:maxBodyInError]
	}
	return body
}
