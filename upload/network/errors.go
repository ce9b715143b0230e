package network

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCancelled is the terminal outcome of a cancelled attempt. It is not a
// failure: the orchestrator never falls back or notifies on it.
var ErrCancelled = errors.New("upload cancelled")

// PreconditionError reports a problem detected before any network I/O.
// Precondition failures are never retried.
type PreconditionError struct {
	Reason string
}

// Error implements builtin errors.Error.
func (e *PreconditionError) Error() string {
	return e.Reason
}

// TransportErrorKind classifies connection-level failures.
type TransportErrorKind string

const (
	// TransportDNS ...
	TransportDNS TransportErrorKind = "dns"
	// TransportTLS ...
	TransportTLS TransportErrorKind = "tls"
	// TransportTimeout is the overall request timeout.
	TransportTimeout TransportErrorKind = "timeout"
	// TransportStall means no bytes moved for the stall window while the
	// connection stayed open.
	TransportStall TransportErrorKind = "stall"
	// TransportConnection covers resets and other socket-level failures.
	TransportConnection TransportErrorKind = "connection"
)

// TransportError is a classified connection-level failure with a
// human-actionable message. Always eligible for fallback to another service.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

// Error implements builtin errors.Error.
func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportDNS:
		return fmt.Sprintf("could not resolve the service host (%v); the service may be down, trying another service can help", e.Err)
	case TransportTLS:
		return fmt.Sprintf("TLS certificate problem (%v); a corporate proxy intercepting HTTPS traffic is a common cause, trying another service can help", e.Err)
	case TransportTimeout:
		return fmt.Sprintf("the upload did not finish within the configured timeout (%v)", e.Err)
	case TransportStall:
		return fmt.Sprintf("the connection stalled: %v", e.Err)
	default:
		return fmt.Sprintf("connection to the service failed (%v); trying another service can help", e.Err)
	}
}

// Unwrap implements errors.Unwrap.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a non-2xx response, classified by status code family.
// Always eligible for fallback to another service.
type ProtocolError struct {
	StatusCode int
	Body       string
}

// Error implements builtin errors.Error.
func (e *ProtocolError) Error() string {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return fmt.Sprintf("the service rate limited this upload (HTTP %d); wait a bit or try another service", e.StatusCode)
	case e.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Sprintf("the file is too large for this service (HTTP %d); try another service", e.StatusCode)
	case e.StatusCode >= 500:
		return fmt.Sprintf("the service reported a server-side problem (HTTP %d); it may be down, trying another service can help", e.StatusCode)
	default:
		return fmt.Sprintf("the service rejected the upload (HTTP %d)", e.StatusCode)
	}
}

// TruncatedResponseError reports a response body that exceeded the accumulation
// cap. The excess bytes are discarded and the attempt fails regardless of
// status, instead of silently parsing a cut-off body.
type TruncatedResponseError struct {
	Limit int64
}

// Error implements builtin errors.Error.
func (e *TruncatedResponseError) Error() string {
	return fmt.Sprintf("the service response exceeded %d bytes and was discarded", e.Limit)
}
