package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_CodesAndNames(t *testing.T) {
	tests := []struct {
		err  *Error
		code string
		name string
	}{
		{NewAbortedError(), "UND_ERR_ABORTED", "AbortError"},
		{NewConnectTimeoutError(nil), "UND_ERR_CONNECT_TIMEOUT", "ConnectTimeoutError"},
		{NewResponseTimeoutError(nil), "UND_ERR_RESPONSE_TIMEOUT", "ResponseTimeoutError"},
		{NewNetworkError("connection refused", nil), "UND_ERR_SOCKET", "SocketError"},
		{NewResponseError(500, ""), "UND_ERR_RESPONSE", "ResponseError"},
		{NewNotSupportedError("CONNECT"), "UND_ERR_NOT_SUPPORTED", "NotSupportedError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.name, tt.err.Name())
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestError_Is(t *testing.T) {
	var err error = NewConnectTimeoutError(errors.New("dial tcp: i/o timeout"))
	wrapped := fmt.Errorf("dispatch: %w", err)

	assert.ErrorIs(t, wrapped, ErrConnectTimeout)
	assert.NotErrorIs(t, wrapped, ErrResponseTimeout)

	var target *Error
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, KindConnectTimeout, target.Kind)
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("read: connection reset by peer")
	err := NewNetworkError("connection reset", cause)

	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Info().Message, "peer")
}

func TestError_Info(t *testing.T) {
	info := NewResponseError(404, "").Info()
	require.NotNil(t, info.StatusCode)
	assert.Equal(t, 404, *info.StatusCode)
	assert.Equal(t, "Response status code 404", info.Message)

	b, err := json.Marshal(NewAbortedError().Info())
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"UND_ERR_ABORTED","name":"AbortError","message":"Request aborted"}`, string(b))
}

func TestErrorKind_StringUnknown(t *testing.T) {
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
	assert.Equal(t, "AbortError", KindRequestAborted.String())
}
