package testutil

import (
	"bytes"
	"sync"
	"time"

	"github.com/vadimpiven/node-reqwest-sub001/core"
)

// Call is one recorded Handler invocation.
type Call struct {
	Type          core.EventType
	StatusCode    int
	StatusMessage string
	Headers       core.Header
	Chunk         []byte
	Trailers      core.Header
	Err           *core.Error
}

// Recorder is a core.Handler that records every call. It flags calls that
// arrive after a terminal call and closes Done on the first terminal call.
//
// Example:
//
//	rec := testutil.NewRecorder()
//	_, err := agent.Dispatch(ctx, opts, rec)
//	require.NoError(t, err)
//	rec.Wait(t, 5*time.Second)
type Recorder struct {
	mu        sync.Mutex
	calls     []Call
	terminals int
	late      int
	done      chan struct{}

	// OnData, if set, runs after a data call was recorded.
	OnData func(chunk []byte)
	// OnStart, if set, runs after the start call was recorded.
	OnStart func(statusCode int)
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{done: make(chan struct{})}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminals > 0 {
		r.late++
	}
	r.calls = append(r.calls, c)
	if c.Type == core.EventResponseEnd || c.Type == core.EventResponseError {
		r.terminals++
		if r.terminals == 1 {
			close(r.done)
		}
	}
}

// OnResponseStart implements core.Handler.
func (r *Recorder) OnResponseStart(statusCode int, headers core.Header, statusMessage string) {
	r.record(Call{Type: core.EventResponseStart, StatusCode: statusCode, Headers: headers, StatusMessage: statusMessage})
	if r.OnStart != nil {
		r.OnStart(statusCode)
	}
}

// OnResponseData implements core.Handler.
func (r *Recorder) OnResponseData(chunk []byte) {
	r.record(Call{Type: core.EventResponseData, Chunk: chunk})
	if r.OnData != nil {
		r.OnData(chunk)
	}
}

// OnResponseEnd implements core.Handler.
func (r *Recorder) OnResponseEnd(trailers core.Header) {
	r.record(Call{Type: core.EventResponseEnd, Trailers: trailers})
}

// OnResponseError implements core.Handler.
func (r *Recorder) OnResponseError(err *core.Error) {
	r.record(Call{Type: core.EventResponseError, Err: err})
}

// Done is closed on the first terminal call.
func (r *Recorder) Done() <-chan struct{} { return r.done }

// Wait blocks until the first terminal call or fails t after timeout.
func (r *Recorder) Wait(t TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatalf("no terminal event after %s; calls so far: %v", timeout, r.Types())
	}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Types returns the recorded call types in order.
func (r *Recorder) Types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Type
	}
	return out
}

// Count returns how many calls of type et were recorded.
func (r *Recorder) Count(et core.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Type == et {
			n++
		}
	}
	return n
}

// Body concatenates all data chunks.
func (r *Recorder) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b bytes.Buffer
	for _, c := range r.calls {
		if c.Type == core.EventResponseData {
			b.Write(c.Chunk)
		}
	}
	return b.Bytes()
}

// Terminals returns the number of terminal calls.
func (r *Recorder) Terminals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminals
}

// Late returns the number of calls that arrived after a terminal call.
func (r *Recorder) Late() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.late
}

// Last returns the most recent call.
func (r *Recorder) Last() Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}
	}
	return r.calls[len(r.calls)-1]
}

// Err returns the error of the terminal call, if any.
func (r *Recorder) Err() *core.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Type == core.EventResponseError {
			return c.Err
		}
	}
	return nil
}

// TB is the subset of testing.TB used by the helpers.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}
