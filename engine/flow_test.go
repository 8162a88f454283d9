package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowState_PauseResumeIdempotent(t *testing.T) {
	s := newFlowState(nil)

	assert.True(t, s.pause())
	assert.False(t, s.pause())
	assert.True(t, s.isPaused())

	assert.True(t, s.resume())
	assert.False(t, s.resume())
	assert.False(t, s.isPaused())
}

func TestFlowState_AwaitBlocksWhilePaused(t *testing.T) {
	s := newFlowState(nil)
	s.pause()

	woke := make(chan error, 1)
	go func() { woke <- s.awaitRunnable(context.Background()) }()

	select {
	case <-woke:
		t.Fatal("awaitRunnable returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	s.resume()
	select {
	case err := <-woke:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("resume did not wake the waiter")
	}
}

func TestFlowState_AbortWakesAndCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newFlowState(cancel)
	s.pause()

	woke := make(chan error, 1)
	go func() { woke <- s.awaitRunnable(context.Background()) }()

	assert.True(t, s.abort())
	assert.False(t, s.abort())

	select {
	case err := <-woke:
		assert.ErrorIs(t, err, errAborted)
	case <-time.After(time.Second):
		t.Fatal("abort did not wake the waiter")
	}
	assert.Error(t, ctx.Err())
	assert.True(t, s.isCancelled())
}

func TestFlowState_AwaitHonorsContext(t *testing.T) {
	s := newFlowState(nil)
	s.pause()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.awaitRunnable(ctx), context.DeadlineExceeded)
}

func TestFlowState_CompleteBeatsLateAbort(t *testing.T) {
	cancelled := false
	s := newFlowState(func() { cancelled = true })

	require.True(t, s.complete())
	assert.False(t, s.abort())
	assert.False(t, s.isCancelled())
	assert.False(t, cancelled)
}

func TestFlowState_PauseAfterCompleteUntilDelivered(t *testing.T) {
	s := newFlowState(nil)
	require.True(t, s.complete())

	assert.True(t, s.pause(), "events of a finished task may still be queued")
	assert.True(t, s.isPaused())

	s.markDelivered()
	assert.False(t, s.isPaused())
	assert.False(t, s.pause())
	assert.False(t, s.resume())
}

func TestFlowState_AbortBeatsComplete(t *testing.T) {
	s := newFlowState(nil)
	s.abort()
	assert.False(t, s.complete())
}

func TestFlowState_ResumeAfterDone(t *testing.T) {
	s := newFlowState(nil)
	s.pause()
	s.terminate()

	assert.True(t, s.isDone())
	assert.True(t, s.resume())
}

func TestFlowState_Release(t *testing.T) {
	s := newFlowState(nil)
	s.terminate()

	select {
	case <-s.doneCh:
		t.Fatal("doneCh closed before release")
	default:
	}

	s.release()
	s.release()
	<-s.doneCh
}

func TestController_InertAfterTerminal(t *testing.T) {
	resumed := 0
	s := newFlowState(nil)
	c := &Controller{id: "r", state: s, onResume: func() { resumed++ }}

	s.complete()
	s.markDelivered()
	c.Pause()
	c.Abort()
	c.Resume()

	assert.False(t, c.Paused())
	assert.False(t, s.isCancelled())
	assert.Zero(t, resumed)
	assert.Equal(t, "r", c.ID())
}
