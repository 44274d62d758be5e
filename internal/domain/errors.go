package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrSecretNotFound       = errors.New("secret not found")
	ErrServiceKeyNotFound   = errors.New("service key not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTwoFactorRejected    = errors.New("two-factor code rejected")
	ErrInvalidState         = errors.New("invalid session state")
	ErrTransport            = errors.New("transport error")
	// ErrArtifactUnavailable marks a build without debug symbols. It is an
	// expected outcome, not a failure.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrRunInFlight         = errors.New("sync run already in flight")
	ErrUnknownTask         = errors.New("unknown task")
	ErrQueueFull           = errors.New("task queue full")
)

// TransportError is a network or HTTP failure talking to a remote endpoint.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport error"
	}
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// IsUnauthorized reports whether err carries an HTTP 401 from the vendor.
func IsUnauthorized(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsSessionFatal reports whether err invalidates the stored session.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) || IsUnauthorized(err)
}
