package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrNotFound matches faults reporting an absent resource.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized matches faults reporting rejected credentials.
	ErrUnauthorized = errors.New("management endpoint rejected credentials")

	// ErrOperationTimeout is returned when an asynchronous operation does not
	// finish within the configured bound.
	ErrOperationTimeout = errors.New("timed out waiting for operation")
)

// Fault is an error reported by the management endpoint.
type Fault struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	var parts []string
	if f.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", f.StatusCode))
	}
	if f.Code != "" {
		parts = append(parts, f.Code)
	}
	if f.Message != "" {
		parts = append(parts, f.Message)
	}
	if f.RequestID != "" {
		parts = append(parts, "request="+f.RequestID)
	}
	return "management fault: " + strings.Join(parts, ": ")
}

// Is lets errors.Is match a fault against ErrNotFound and ErrUnauthorized.
func (f *Fault) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return f.StatusCode == http.StatusNotFound || f.Code == "ResourceNotFound"
	case ErrUnauthorized:
		return f.StatusCode == http.StatusUnauthorized || f.Code == "AuthenticationFailed"
	default:
		return false
	}
}

// IsThrottled returns true if the endpoint asked the caller to slow down.
func (f *Fault) IsThrottled() bool {
	return f.StatusCode == http.StatusTooManyRequests || f.Code == "TooManyRequests"
}

// IsNotFound reports whether err is an expected-absence fault.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient determines if a failed call should be retried on a fresh
// connection. Remote faults are transient only for throttling, expired
// credentials and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Non-retryable: caller cancelled
	if errors.Is(err, context.Canceled) {
		return false
	}

	var f *Fault
	if errors.As(err, &f) {
		if f.IsThrottled() {
			return true
		}
		switch f.StatusCode {
		case http.StatusUnauthorized, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	// Retryable: per-attempt timeout
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Retryable: connection closed/reset
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "i/o timeout")
}
