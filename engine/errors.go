package engine

import (
	"context"
	"errors"
	"net"

	"github.com/vadimpiven/node-reqwest-sub001/core"
)

// ErrAgentDestroyed is returned by Dispatch after Destroy was called.
var ErrAgentDestroyed = errors.New("agent destroyed")

type dispatchErrorKind int

const (
	dispatchAborted dispatchErrorKind = iota + 1
	dispatchTimeout
	dispatchNetwork
	dispatchHTTP
)

// dispatchError is the transport-level failure as seen inside a task. It is
// translated into a *core.Error before anything leaves the task.
type dispatchError struct {
	kind       dispatchErrorKind
	connecting bool
	statusCode int
	message    string
	cause      error
}

func (e *dispatchError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.message
}

func (e *dispatchError) Unwrap() error { return e.cause }

// toError maps the internal failure onto the closed taxonomy.
func (e *dispatchError) toError() *core.Error {
	switch e.kind {
	case dispatchAborted:
		return core.NewAbortedError()
	case dispatchTimeout:
		if e.connecting {
			return core.NewConnectTimeoutError(e.cause)
		}
		return core.NewResponseTimeoutError(e.cause)
	case dispatchHTTP:
		return core.NewResponseError(e.statusCode, e.message)
	default:
		msg := e.message
		if msg == "" && e.cause != nil {
			msg = e.cause.Error()
		}
		return core.NewNetworkError(msg, e.cause)
	}
}

// classify turns a transport error into a dispatchError. aborted reports
// whether the controller cancelled the request, which always wins.
func classify(ctx context.Context, err error, aborted bool) *dispatchError {
	if aborted || errors.Is(err, errAborted) {
		return &dispatchError{kind: dispatchAborted, cause: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && opErr.Timeout() {
		return &dispatchError{kind: dispatchTimeout, connecting: true, cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &dispatchError{kind: dispatchTimeout, cause: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &dispatchError{kind: dispatchAborted, cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &dispatchError{kind: dispatchTimeout, cause: err}
	}

	return &dispatchError{kind: dispatchNetwork, cause: err}
}
