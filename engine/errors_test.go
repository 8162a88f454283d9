package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vadimpiven/node-reqwest-sub001/core"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	dialTimeout := &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}
	readTimeout := &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errors.New("connection refused"))}

	tests := []struct {
		name    string
		ctx     context.Context
		err     error
		aborted bool
		want    core.ErrorKind
	}{
		{"abort flag wins", context.Background(), dialTimeout, true, core.KindRequestAborted},
		{"abort sentinel", context.Background(), errAborted, false, core.KindRequestAborted},
		{"dial timeout", context.Background(), fmt.Errorf("wrap: %w", dialTimeout), false, core.KindConnectTimeout},
		{"read timeout", context.Background(), readTimeout, false, core.KindResponseTimeout},
		{"deadline", context.Background(), context.DeadlineExceeded, false, core.KindResponseTimeout},
		{"parent canceled", canceled, errors.New("net/http: request canceled"), false, core.KindRequestAborted},
		{"refused", context.Background(), refused, false, core.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, tt.err, tt.aborted).toError()
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestDispatchError_NetworkMessage(t *testing.T) {
	cause := errors.New("connection reset by peer")
	e := classify(context.Background(), cause, false).toError()

	assert.Equal(t, core.KindNetwork, e.Kind)
	assert.Equal(t, "connection reset by peer", e.Message)
	assert.ErrorIs(t, e, cause)
}

func TestDispatchError_HTTP(t *testing.T) {
	e := (&dispatchError{kind: dispatchHTTP, statusCode: 503}).toError()
	assert.Equal(t, core.KindResponseError, e.Kind)
	assert.Equal(t, 503, e.StatusCode)
}
