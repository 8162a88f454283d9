package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	calls []string
}

func (h *recordingHandler) OnResponseStart(int, Header, string) { h.calls = append(h.calls, "start") }
func (h *recordingHandler) OnResponseData([]byte)              { h.calls = append(h.calls, "data") }
func (h *recordingHandler) OnResponseEnd(Header)               { h.calls = append(h.calls, "end") }
func (h *recordingHandler) OnResponseError(*Error)             { h.calls = append(h.calls, "error") }

func TestEvent_Constructors(t *testing.T) {
	start := NewResponseStartEvent("r1", 200, Header{"a": {"b"}}, "OK")
	assert.Equal(t, EventResponseStart, start.Type)
	assert.Equal(t, "r1", start.RequestID)
	assert.False(t, start.Timestamp.IsZero())
	assert.False(t, start.IsTerminal())

	end := NewResponseEndEvent("r1", nil)
	assert.NotNil(t, end.Trailers)
	assert.Empty(t, end.Trailers)
	assert.True(t, end.IsTerminal())

	fail := NewResponseErrorEvent("r1", NewAbortedError())
	assert.True(t, fail.IsTerminal())
}

func TestEvent_Deliver(t *testing.T) {
	h := &recordingHandler{}

	NewResponseStartEvent("r", 200, nil, "OK").Deliver(h)
	NewResponseDataEvent("r", []byte("x")).Deliver(h)
	NewResponseEndEvent("r", nil).Deliver(h)
	NewResponseErrorEvent("r", NewAbortedError()).Deliver(h)

	assert.Equal(t, []string{"start", "data", "end", "error"}, h.calls)
}

func TestHandlerFuncs_NilFieldsSkipped(t *testing.T) {
	var got []byte
	h := HandlerFuncs{Data: func(b []byte) { got = b }}

	assert.NotPanics(t, func() {
		h.OnResponseStart(200, nil, "OK")
		h.OnResponseData([]byte("hi"))
		h.OnResponseEnd(nil)
		h.OnResponseError(NewAbortedError())
	})
	assert.Equal(t, []byte("hi"), got)
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
