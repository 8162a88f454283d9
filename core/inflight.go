package core

import (
	"context"
	"sync"
)

// InFlight counts dispatches that have not yet reached a terminal event and
// lets shutdown wait for the count to drop to zero.
type InFlight struct {
	mu    sync.Mutex
	count int
	total uint64
	idle  chan struct{}
}

// NewInFlight creates an idle tracker.
func NewInFlight() *InFlight {
	idle := make(chan struct{})
	close(idle)
	return &InFlight{idle: idle}
}

// Increment registers one more in-flight dispatch.
func (f *InFlight) Increment() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.count == 0 {
		f.idle = make(chan struct{})
	}
	f.count++
	f.total++
}

// Decrement marks one dispatch as terminal. Extra calls are ignored.
func (f *InFlight) Decrement() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.count == 0 {
		return
	}
	f.count--
	if f.count == 0 {
		close(f.idle)
	}
}

// Count returns the number of in-flight dispatches.
func (f *InFlight) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.count
}

// Total returns how many dispatches were ever registered.
func (f *InFlight) Total() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.total
}

// Wait blocks until no dispatch is in flight or ctx is done.
func (f *InFlight) Wait(ctx context.Context) error {
	f.mu.Lock()
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
