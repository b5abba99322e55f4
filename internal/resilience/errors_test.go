package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("not found"), false},
		{"wrapped transient", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 503)), true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"truncated body", fmt.Errorf("decode: %w", io.ErrUnexpectedEOF), true},
		{"ftp 421", errors.New("421 Service not available, closing control connection"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"cancelled transient", NewTransientError(context.Canceled, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 404, 501, 505} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("uniprot", 503, "/uniparc/P1", "")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, "uniprot: status 503 for /uniparc/P1", err.Error())

	err = StatusError("uniprot", 403, "/x", " forbidden \n")
	assert.False(t, IsTransient(err))
	assert.Equal(t, "uniprot: status 403 for /x: forbidden", err.Error())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "ok", Classify(nil))
	assert.Equal(t, "transient", Classify(NewTransientError(errors.New("x"), 429)))
	assert.Equal(t, "circuit_open", Classify(fmt.Errorf("lookup: %w", ErrCircuitOpen)))
	assert.Equal(t, "permanent", Classify(errors.New("x")))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 7*time.Second, ParseRetryAfter("7", now))
	assert.Equal(t, 90*time.Second, ParseRetryAfter("Fri, 01 Mar 2024 12:01:30 GMT", now))
	assert.Zero(t, ParseRetryAfter("Fri, 01 Mar 2024 11:00:00 GMT", now), "past date")
	assert.Zero(t, ParseRetryAfter("", now))
	assert.Zero(t, ParseRetryAfter("soon", now))
	assert.Zero(t, ParseRetryAfter("-3", now))
}
