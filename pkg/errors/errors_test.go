package errors_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brightsync/pkg/errors"
)

func TestNewCarriesTypeAndStack(t *testing.T) {
	err := errors.New(errors.ErrorTypeConfig, "missing required configuration value: api_token")

	assert.Equal(t, errors.ErrorTypeConfig, err.Type)
	assert.Equal(t, "config: missing required configuration value: api_token", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := errors.Wrap(cause, errors.ErrorTypeData, "failed to decode snapshot payload")
	top := errors.Wrap(err, errors.ErrorTypeSync, "failed to sync data from Bright Data")

	require.NotNil(t, top)
	assert.True(t, errors.Is(top, io.ErrUnexpectedEOF))
	assert.True(t, errors.IsType(top, errors.ErrorTypeSync))

	var typed *errors.Error
	require.True(t, errors.As(top, &typed))
	assert.Equal(t, errors.ErrorTypeSync, typed.Type)
}

func TestWrapNilReturnsNil(t *testing.T) {
	var err *errors.Error = errors.Wrap(nil, errors.ErrorTypeSync, "ignored")
	assert.Nil(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limit", errors.New(errors.ErrorTypeRateLimit, "rate limit exceeded"), true},
		{"timeout", errors.New(errors.ErrorTypeTimeout, "request timed out"), true},
		{"connection", errors.New(errors.ErrorTypeConnection, "connection refused"), true},
		{"validation", errors.New(errors.ErrorTypeValidation, "invalid request parameters"), false},
		{"terminal api", errors.New(errors.ErrorTypeAPI, "insufficient account balance"), false},
		{"foreign error", fmt.Errorf("plain"), false},
		{"wrapped retryable", errors.Wrap(errors.New(errors.ErrorTypeTimeout, "slow"), errors.ErrorTypeSync, "sync failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, errors.IsRetryable(tt.err))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrorTypeAPI, "unexpected response").
		WithDetail("http_status", 418).
		WithDetail("snapshot_id", "s_abc123")

	assert.Equal(t, 418, err.Details["http_status"])
	assert.Equal(t, "s_abc123", err.Details["snapshot_id"])
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(errors.New(errors.ErrorTypeValidation, "bad")))
	assert.Equal(t, errors.ErrorTypeInternal, errors.TypeOf(fmt.Errorf("plain")))
}
