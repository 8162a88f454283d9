package engine

import (
	"context"
	"errors"
	"sync"
)

var errAborted = errors.New("request aborted")

// flowState is the pause/cancel primitive shared by exactly one dispatch task
// and its Controller. cancelled never clears once set; paused may toggle
// until the Handler received its terminal event. Waiters block on a
// broadcast channel that is closed and replaced on every wake-up, so a
// paused task parks its goroutine instead of polling.
//
// done is the producer side (the task handed off its terminal event) and
// only guards abort. delivered is the consumer side (the Handler got the
// terminal event) and guards pause: events of a finished task may still sit
// in the event loop or the sink, and a pause must hold them.
type flowState struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
	done      bool
	delivered bool
	changed   chan struct{}
	doneCh    chan struct{}
	cancel    context.CancelFunc
	closeDone sync.Once
}

func newFlowState(cancel context.CancelFunc) *flowState {
	return &flowState{
		changed: make(chan struct{}),
		doneCh:  make(chan struct{}),
		cancel:  cancel,
	}
}

// broadcast wakes every waiter; caller holds mu.
func (s *flowState) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *flowState) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delivered || s.cancelled || s.paused {
		return false
	}
	s.paused = true
	return true
}

func (s *flowState) resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Resuming after the task finished is still allowed: the consumer may be
	// holding events of a paused request that only a resume releases.
	if !s.paused {
		return false
	}
	s.paused = false
	s.broadcast()
	return true
}

// abort sets cancelled and interrupts any network wait of the task. It is a
// no-op once a terminal event has been handed off.
func (s *flowState) abort() bool {
	s.mu.Lock()
	if s.done || s.cancelled {
		s.mu.Unlock()
		return false
	}
	s.cancelled = true
	s.broadcast()
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	return true
}

func (s *flowState) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *flowState) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *flowState) isDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// awaitRunnable returns nil when the task may fetch the next chunk, errAborted
// once cancelled, or ctx.Err() if ctx ends while paused.
func (s *flowState) awaitRunnable(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return errAborted
		}
		if !s.paused {
			s.mu.Unlock()
			return nil
		}
		wake := s.changed
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// complete marks natural completion. It fails if cancellation was observed
// first; afterwards abort is a no-op.
func (s *flowState) complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return false
	}
	s.markDoneLocked()
	return true
}

// terminate marks an error terminal. Like complete, it makes abort a no-op.
func (s *flowState) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markDoneLocked()
}

func (s *flowState) markDoneLocked() {
	s.done = true
}

// markDelivered records that the Handler is receiving its terminal event.
// Afterwards pause is a no-op and a pending pause is cleared.
func (s *flowState) markDelivered() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivered = true
	if s.paused {
		s.paused = false
		s.broadcast()
	}
}

// release closes doneCh. The task calls it after the terminal event was
// handed to the event loop, so a closure posted after <-doneCh runs after
// the terminal delivery.
func (s *flowState) release() {
	s.closeDone.Do(func() { close(s.doneCh) })
}
