package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of a dispatch event.
type EventType string

const (
	// EventResponseStart carries the status line and response headers.
	EventResponseStart EventType = "response-start"
	// EventResponseData carries one body chunk.
	EventResponseData EventType = "response-data"
	// EventResponseEnd marks the end of the body and carries trailers.
	EventResponseEnd EventType = "response-end"
	// EventResponseError carries the terminal error.
	EventResponseError EventType = "response-error"
)

// Event is the unit a dispatch task hands to the marshaling channel. After
// emission it is treated as immutable; Chunk is owned by the event.
type Event struct {
	Type          EventType
	RequestID     string
	StatusCode    int
	StatusMessage string
	Headers       Header
	Chunk         []byte
	Trailers      Header
	Err           *Error
	Timestamp     time.Time
}

func newEvent(t EventType, requestID string) Event {
	return Event{Type: t, RequestID: requestID, Timestamp: time.Now().UTC()}
}

// NewResponseStartEvent creates a response-start event.
func NewResponseStartEvent(requestID string, statusCode int, headers Header, statusMessage string) Event {
	e := newEvent(EventResponseStart, requestID)
	e.StatusCode = statusCode
	e.Headers = headers
	e.StatusMessage = statusMessage
	return e
}

// NewResponseDataEvent creates a response-data event that takes ownership of
// chunk. Callers must not reuse chunk afterwards.
func NewResponseDataEvent(requestID string, chunk []byte) Event {
	e := newEvent(EventResponseData, requestID)
	e.Chunk = chunk
	return e
}

// NewResponseEndEvent creates a response-end event. A nil trailers map is
// replaced by an empty one.
func NewResponseEndEvent(requestID string, trailers Header) Event {
	if trailers == nil {
		trailers = Header{}
	}
	e := newEvent(EventResponseEnd, requestID)
	e.Trailers = trailers
	return e
}

// NewResponseErrorEvent creates a response-error event.
func NewResponseErrorEvent(requestID string, err *Error) Event {
	e := newEvent(EventResponseError, requestID)
	e.Err = err
	return e
}

// IsTerminal reports whether the event ends the request lifecycle.
func (e Event) IsTerminal() bool {
	return e.Type == EventResponseEnd || e.Type == EventResponseError
}

// Deliver invokes the Handler method matching the event type.
func (e Event) Deliver(h Handler) {
	switch e.Type {
	case EventResponseStart:
		h.OnResponseStart(e.StatusCode, e.Headers, e.StatusMessage)
	case EventResponseData:
		h.OnResponseData(e.Chunk)
	case EventResponseEnd:
		h.OnResponseEnd(e.Trailers)
	case EventResponseError:
		h.OnResponseError(e.Err)
	}
}

// NewID generates a new unique identifier for requests.
func NewID() string { return uuid.NewString() }
