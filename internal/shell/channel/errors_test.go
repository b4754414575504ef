package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFault_Is(t *testing.T) {
	notFound := &Fault{StatusCode: http.StatusNotFound, Code: "ResourceNotFound"}
	assert.True(t, errors.Is(notFound, ErrNotFound))
	assert.False(t, errors.Is(notFound, ErrUnauthorized))

	byCode := &Fault{StatusCode: http.StatusBadRequest, Code: "ResourceNotFound"}
	assert.True(t, IsNotFound(byCode))

	unauth := &Fault{StatusCode: http.StatusUnauthorized}
	assert.True(t, errors.Is(unauth, ErrUnauthorized))
	assert.False(t, IsNotFound(unauth))

	wrapped := fmt.Errorf("lookup: %w", notFound)
	assert.True(t, IsNotFound(wrapped))
}

func TestFault_Error(t *testing.T) {
	f := &Fault{StatusCode: 409, Code: "ConflictError", Message: "already exists", RequestID: "abc"}
	assert.Equal(t, "management fault: status=409: ConflictError: already exists: request=abc", f.Error())
}

func TestFault_IsThrottled(t *testing.T) {
	assert.True(t, (&Fault{StatusCode: http.StatusTooManyRequests}).IsThrottled())
	assert.True(t, (&Fault{StatusCode: http.StatusServiceUnavailable, Code: "TooManyRequests"}).IsThrottled())
	assert.False(t, (&Fault{StatusCode: http.StatusConflict}).IsThrottled())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"eof", io.EOF, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"net error", timeoutErr{}, true},
		{"connection reset text", errors.New("read tcp: connection reset by peer"), true},
		{"unauthorized", &Fault{StatusCode: 401}, true},
		{"throttled", &Fault{StatusCode: 429}, true},
		{"throttled by code", &Fault{StatusCode: 400, Code: "TooManyRequests"}, true},
		{"server error", &Fault{StatusCode: 500}, true},
		{"unavailable", &Fault{StatusCode: 503}, true},
		{"not found", &Fault{StatusCode: 404}, false},
		{"conflict", &Fault{StatusCode: 409}, false},
		{"bad request", &Fault{StatusCode: 400}, false},
		{"plain", errors.New("invalid configuration"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
