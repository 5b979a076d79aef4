package resilience

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// TransientError is a failed delivery that Do should attempt again.
// StatusCode is the HTTP status that caused it, or 0.
type TransientError struct {
	StatusCode int
	Err        error
}

// NewTransientError marks err as retryable.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{StatusCode: statusCode, Err: err}
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Dropped or refused connections.
var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// IsTransient is the default ShouldRetry. It accepts TransientError,
// network timeouts, truncated responses and dropped connections.
func IsTransient(err error) bool {
	var te *TransientError
	var ne net.Error
	switch {
	case err == nil:
		return false
	case errors.As(err, &te):
		return true
	case errors.As(err, &ne) && ne.Timeout():
		return true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a response status is worth another
// attempt: request timeouts, rate limits and gateway or server faults.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
