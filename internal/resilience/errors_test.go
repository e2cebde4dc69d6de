package resilience

import (
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", eris.New("bad input"), false},
		{"explicit transient", NewTransientError(eris.New("overloaded"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("overloaded"), 503), "vapi: get call"), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"timeout text", eris.New("read tcp: i/o timeout"), true},
		{"dns text", eris.New("dial tcp: lookup api.vapi.ai: no such host"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransient_NetTimeout(t *testing.T) {
	var err error = &net.DNSError{Err: "timeout", IsTimeout: true}
	assert.True(t, IsTransient(err))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
