package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vadimpiven/node-reqwest-sub001/core"
)

// phase is the position of a task in its state machine. Completed, Errored
// and Aborted are absorbing.
type phase int

const (
	phaseConnecting phase = iota
	phaseHeadersReceived
	phaseStreaming
	phaseCompleted
	phaseErrored
	phaseAborted
)

func (p phase) String() string {
	switch p {
	case phaseConnecting:
		return "connecting"
	case phaseHeadersReceived:
		return "headers-received"
	case phaseStreaming:
		return "streaming"
	case phaseCompleted:
		return "completed"
	case phaseErrored:
		return "errored"
	case phaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// task drives one exchange from connection acquisition to its terminal
// event. It runs on its own goroutine and only talks to the consumer by
// posting events to the Agent's loop.
type task struct {
	agent  *Agent
	id     string
	opts   *core.DispatchOptions
	url    *url.URL
	ctx    context.Context
	cancel context.CancelFunc
	state  *flowState
	sink   *sink

	phase    phase
	acquired bool
	cc       *CallbackContext
}

func (t *task) run() {
	t.cc = &CallbackContext{
		RequestID: t.id,
		Method:    t.opts.Method,
		URL:       t.url.Redacted(),
		Started:   time.Now(),
		Metadata:  make(map[string]any),
	}

	defer t.finish()
	defer func() {
		if p := recover(); p != nil {
			t.agent.logger.Error("request %s: dispatch task panicked: %v", t.id, p)
			t.fail(core.NewNetworkError(fmt.Sprintf("internal error: %v", p), nil))
		}
	}()

	if t.opts.Method == core.MethodConnect || t.opts.HasUpgradeIntent() {
		t.runCallbacks(CallbackBeforeDispatch)
		msg := "upgrade is not supported"
		if t.opts.Method == core.MethodConnect {
			msg = "CONNECT method is not supported"
		}
		t.fail(core.NewNotSupportedError(msg))
		return
	}

	req, err := t.newRequest()
	t.cc.Request = req
	t.runCallbacks(CallbackBeforeDispatch)
	if t.cc.Request != nil {
		req = t.cc.Request
	}
	t.cc.Request = nil

	if err != nil {
		t.fail(core.NewNetworkError(err.Error(), err))
		return
	}

	resp, derr := t.connect(req)
	if derr != nil {
		t.fail(derr.toError())
		return
	}
	defer resp.Body.Close()

	if t.state.isCancelled() {
		t.fail(core.NewAbortedError())
		return
	}

	if t.opts.ThrowOnError && resp.StatusCode >= 400 {
		t.cc.StatusCode = resp.StatusCode
		t.fail(core.NewResponseError(resp.StatusCode, ""))
		return
	}

	t.phase = phaseHeadersReceived
	t.cc.StatusCode = resp.StatusCode
	t.runCallbacks(CallbackResponseStart)
	t.post(core.NewResponseStartEvent(
		t.id,
		resp.StatusCode,
		core.HeaderFromHTTP(resp.Header),
		statusMessage(resp),
	))

	t.phase = phaseStreaming
	t.stream(resp)
}

// newRequest translates the options into an outgoing request. The body is
// single-use, so GetBody stays nil and the transport never replays it.
func (t *task) newRequest() (*http.Request, error) {
	req, err := http.NewRequestWithContext(t.ctx, string(t.opts.Method), t.url.String(), t.opts.Body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.GetBody = nil

	req.Header = t.opts.Headers.HTTP()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}
	if cl := req.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid content-length %q", cl)
		}
		req.ContentLength = n
		req.Header.Del("Content-Length")
	}

	return req, nil
}

// connect acquires a dispatch slot and issues the request.
func (t *task) connect(req *http.Request) (*http.Response, *dispatchError) {
	if t.agent.sem != nil {
		if err := t.agent.sem.Acquire(t.ctx, 1); err != nil {
			return nil, classify(t.ctx, err, t.state.isCancelled())
		}
		t.acquired = true
	}

	if t.agent.limiter != nil {
		if err := t.agent.limiter.Wait(t.ctx); err != nil {
			if t.ctx.Err() == nil {
				// The limiter refuses waits that would outlive the deadline.
				return nil, &dispatchError{kind: dispatchTimeout, cause: err}
			}
			return nil, classify(t.ctx, err, t.state.isCancelled())
		}
	}

	if t.state.isCancelled() {
		return nil, &dispatchError{kind: dispatchAborted, cause: errAborted}
	}

	// GotConn fires once dialing and the TLS handshake are done. A timeout
	// before that belongs to the connect phase even when the transport does
	// not report it as a dial error.
	var connected atomic.Bool
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}))

	resp, err := t.agent.transport.RoundTrip(req)
	if err != nil {
		derr := classify(t.ctx, err, t.state.isCancelled())
		if derr.kind == dispatchTimeout && !connected.Load() && t.ctx.Err() == nil {
			derr.connecting = true
		}
		return nil, derr
	}
	return resp, nil
}

// stream forwards the body chunk by chunk. The paused and cancelled flags are
// consulted before every read.
func (t *task) stream(resp *http.Response) {
	buf := make([]byte, t.agent.config.ChunkSize)

	for {
		if err := t.state.awaitRunnable(t.ctx); err != nil {
			t.fail(classify(t.ctx, err, t.state.isCancelled()).toError())
			return
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			t.cc.BodyBytes += int64(n)
			t.post(core.NewResponseDataEvent(t.id, bytes.Clone(buf[:n])))
		}

		if errors.Is(err, io.EOF) {
			if !t.state.complete() {
				t.fail(core.NewAbortedError())
				return
			}
			t.phase = phaseCompleted
			t.post(core.NewResponseEndEvent(t.id, core.HeaderFromHTTP(resp.Trailer)))
			return
		}
		if err != nil {
			t.fail(classify(t.ctx, err, t.state.isCancelled()).toError())
			return
		}
	}
}

// fail hands off the error terminal. It is a no-op once a terminal was
// handed off.
func (t *task) fail(err *core.Error) {
	if t.phase >= phaseCompleted {
		return
	}
	t.state.terminate()

	if err.Kind == core.KindRequestAborted {
		t.phase = phaseAborted
	} else {
		t.phase = phaseErrored
	}
	t.cc.Err = err
	t.post(core.NewResponseErrorEvent(t.id, err))
}

func (t *task) post(ev core.Event) {
	s := t.sink
	if !t.agent.loop.Post(func() { s.deliver(ev) }) {
		t.agent.logger.Debug("request %s: %s event dropped, event loop closed", t.id, ev.Type)
	}
}

func (t *task) runCallbacks(ct CallbackType) {
	if err := t.agent.callbacks.ExecuteCallbacks(t.ctx, ct, t.cc); err != nil {
		t.agent.logger.Warn("request %s: %v", t.id, err)
	}
}

// finish releases everything the task holds. It runs after the terminal
// event was posted.
func (t *task) finish() {
	if t.acquired {
		t.agent.sem.Release(1)
	}

	t.runCallbacks(CallbackTerminal)
	t.cancel()
	t.agent.release(t.id)
	t.state.release()

	t.agent.logger.Debug("request %s %s in %s", t.id, t.phase, time.Since(t.cc.Started))
}

// statusMessage returns the reason phrase sent by the server, falling back to
// the standard text for the code.
func statusMessage(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}
