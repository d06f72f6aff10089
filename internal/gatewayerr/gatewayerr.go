// Package gatewayerr defines the seven error kinds the gateway surfaces at
// its HTTP boundary, and the status-code mapping for each. Centralizing the
// mapping here keeps individual handlers from scattering ad hoc http.Error
// calls, the same way internal/store kept a single ErrNotFound shape instead
// of one per entity.
package gatewayerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names one of the seven error kinds surfaced at the gateway boundary.
type Kind string

const (
	InvalidRequestKind      Kind = "invalid_request"
	UnauthorizedKind        Kind = "unauthorized"
	RateLimitedKind         Kind = "rate_limited"
	TimeoutKind             Kind = "timeout"
	UpstreamFailureKind     Kind = "upstream_failure"
	NoProviderAvailableKind Kind = "no_provider_available"
	InternalErrorKind       Kind = "internal_error"
)

var statusByKind = map[Kind]int{
	InvalidRequestKind:      http.StatusBadRequest,
	UnauthorizedKind:        http.StatusUnauthorized,
	RateLimitedKind:         http.StatusTooManyRequests,
	TimeoutKind:             http.StatusGatewayTimeout,
	UpstreamFailureKind:     http.StatusBadGateway,
	NoProviderAvailableKind: http.StatusServiceUnavailable,
	InternalErrorKind:       http.StatusInternalServerError,
}

// Error is the single error type used at the gateway boundary. It wraps an
// optional cause so callers can still errors.Is/errors.As through it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status this error kind maps to.
func (e *Error) StatusCode() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func new(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidRequest(message string) *Error          { return new(InvalidRequestKind, message, nil) }
func Unauthorized(message string) *Error            { return new(UnauthorizedKind, message, nil) }
func RateLimited(message string) *Error             { return new(RateLimitedKind, message, nil) }
func Timeout(message string) *Error                 { return new(TimeoutKind, message, nil) }
func UpstreamFailure(message string, cause error) *Error {
	return new(UpstreamFailureKind, message, cause)
}
func NoProviderAvailable(message string) *Error { return new(NoProviderAvailableKind, message, nil) }
func InternalError(message string, cause error) *Error {
	return new(InternalErrorKind, message, cause)
}

// As reports whether err is (or wraps) a *Error, returning it if so.
func As(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}
