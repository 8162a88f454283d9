package engine

import "github.com/vadimpiven/node-reqwest-sub001/core"

// sink is the consumer side of one request. Every method runs on the event
// loop goroutine, so it needs no locking. It is the single call site into the
// Handler and enforces terminal exclusivity: nothing is delivered after an
// end or error event.
//
// Once the request was aborted, non-terminal events still in flight are
// dropped: the task is bound to end with an error.
//
// While the request is paused, start/data/end events are held in arrival
// order and released by the next resume. An error is delivered immediately
// and discards anything held.
type sink struct {
	handler    core.Handler
	state      *flowState
	pending    []core.Event
	terminated bool
}

func newSink(h core.Handler, state *flowState) *sink {
	return &sink{handler: h, state: state}
}

func (s *sink) deliver(ev core.Event) {
	if s.terminated {
		return
	}

	if ev.Type == core.EventResponseError {
		s.pending = nil
		s.call(ev)
		return
	}

	if s.state.isCancelled() {
		s.pending = nil
		return
	}

	if s.state.isPaused() {
		s.pending = append(s.pending, ev)
		return
	}

	s.flush()
	if s.terminated {
		return
	}
	if len(s.pending) > 0 {
		s.pending = append(s.pending, ev)
		return
	}
	s.call(ev)
}

// flush releases held events until the request is paused again.
func (s *sink) flush() {
	if s.state.isCancelled() {
		s.pending = nil
		return
	}
	for len(s.pending) > 0 && !s.terminated {
		if s.state.isPaused() {
			return
		}
		ev := s.pending[0]
		s.pending[0] = core.Event{}
		s.pending = s.pending[1:]
		s.call(ev)
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
}

func (s *sink) call(ev core.Event) {
	if ev.IsTerminal() {
		s.terminated = true
		s.state.markDelivered()
	}
	ev.Deliver(s.handler)
}
