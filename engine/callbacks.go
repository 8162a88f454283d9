package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vadimpiven/node-reqwest-sub001/core"
	"github.com/vadimpiven/node-reqwest-sub001/logging"
)

// CallbackType defines the lifecycle points of a dispatch where callbacks run.
//
// Callbacks hook into the dispatch task without touching its state machine.
// They execute synchronously on the task goroutine, never on the event loop,
// so they must not block for long. Available callback types:
//   - BeforeDispatch: the request is built but not yet sent
//   - ResponseStart: status line and headers arrived
//   - Terminal: the end or error event has been handed off
type CallbackType string

const (
	// CallbackBeforeDispatch is triggered once per request before a connection
	// is acquired. Request is nil when no request could be built, e.g. for
	// requests rejected as NotSupported.
	// Callbacks may add headers to Request.
	CallbackBeforeDispatch CallbackType = "before_dispatch"

	// CallbackResponseStart is triggered when the response head arrived,
	// before the start event is handed to the event loop.
	CallbackResponseStart CallbackType = "response_start"

	// CallbackTerminal is triggered exactly once per request after its
	// terminal event was handed off. Err is nil on natural completion.
	CallbackTerminal CallbackType = "terminal"
)

// CallbackContext provides the information a callback may need. One
// CallbackContext lives for the whole request, so Metadata can carry values
// from BeforeDispatch to Terminal.
type CallbackContext struct {
	// RequestID identifies the dispatch.
	RequestID string

	// Method and URL of the request.
	Method core.Method
	URL    string

	// Request is the outgoing request. Only set for BeforeDispatch. A
	// callback may replace it, e.g. with req.WithContext to carry a span.
	Request *http.Request

	// StatusCode is set from ResponseStart on.
	StatusCode int

	// BodyBytes is the number of body bytes handed off so far.
	BodyBytes int64

	// Started is when the task began.
	Started time.Time

	// Err is the terminal error, if any. Only set for Terminal.
	Err *core.Error

	// CallbackType indicates which lifecycle point is executing.
	CallbackType CallbackType

	// Metadata is private storage shared by callbacks of one request.
	Metadata map[string]any
}

// Callback defines the interface for dispatch lifecycle hooks.
//
// Callbacks are observers: a returned error is logged by the engine and
// never changes the outcome of the exchange.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackBeforeDispatch,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        cc.Request.Header.Set("x-request-id", cc.RequestID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager keeps the registered callbacks per type.
//
// Callbacks run in registration order. Registration is safe for concurrent
// use with execution.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callbacks ...Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, cb := range callbacks {
		cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
	}
}

// ExecuteCallbacks runs every callback of callbackType. All callbacks run
// even if one fails; the failures are joined into the returned error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	var errs []error
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s callback: %w", callbackType, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of callbacks registered for callbackType.
func (cm *CallbackManager) Len(callbackType CallbackType) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[callbackType])
}

// LoggingCallback writes one structured record per finished dispatch.
//
// Example:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	callbacks.RegisterCallback(NewLoggingCallback(logger))
type LoggingCallback struct {
	logger *logging.DispatchLogger
}

// NewLoggingCallback creates a Terminal callback that logs through logger.
func NewLoggingCallback(logger *logging.DispatchLogger) *LoggingCallback {
	return &LoggingCallback{logger: logger.WithComponent("dispatch")}
}

// Type returns CallbackTerminal.
func (c *LoggingCallback) Type() CallbackType {
	return CallbackTerminal
}

// Execute logs the outcome of the exchange.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	code := ""
	if callbackCtx.Err != nil {
		code = callbackCtx.Err.Code()
	}
	c.logger.WithRequest(callbackCtx.RequestID).LogDispatch(
		string(callbackCtx.Method),
		callbackCtx.URL,
		callbackCtx.StatusCode,
		time.Since(callbackCtx.Started),
		callbackCtx.BodyBytes,
		code,
	)
	return nil
}
