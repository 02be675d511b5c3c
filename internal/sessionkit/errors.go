package sessionkit

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSession indicates a refresh was attempted with no current user and no token.
	ErrNoSession = errors.New("session.refresh.no_session")
	// ErrSessionInvalidated indicates the session was cleared while a refresh was in flight.
	ErrSessionInvalidated = errors.New("session.refresh.invalidated")
	// ErrRequestTimeout indicates no response arrived before the request deadline.
	ErrRequestTimeout = errors.New("httpclient.network.timeout")
	// ErrConnectivity indicates the request failed before any response was received.
	ErrConnectivity = errors.New("httpclient.network.connectivity")
	// ErrLoginThrottled indicates a login attempt was submitted faster than the debounce window.
	ErrLoginThrottled = errors.New("auth.login.throttled")
	// ErrInvalidEmail indicates the supplied email failed local validation.
	ErrInvalidEmail = errors.New("auth.login.invalid_email")
	// ErrWeakPassword indicates the supplied password failed local validation.
	ErrWeakPassword = errors.New("auth.login.weak_password")
	// ErrAdminRequired indicates an admin-only operation was attempted without the admin role.
	ErrAdminRequired = errors.New("auth.role.admin_required")
)

// StatusError carries a non-2xx HTTP status back to the caller.
type StatusError struct {
	Status int
	Method string
	Path   string
}

// Error renders the status with its observability message.
func (statusError *StatusError) Error() string {
	return fmt.Sprintf("httpclient.status_%d: %s %s: %s", statusError.Status, statusError.Method, statusError.Path, statusMessage(statusError.Status))
}

// IsStatus reports whether err is a StatusError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var statusError *StatusError
	return errors.As(err, &statusError) && statusError.Status == status
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request payload"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not found"
	case http.StatusTooManyRequests:
		return "rate limited"
	case http.StatusInternalServerError:
		return "server error"
	default:
		return "unexpected status"
	}
}
