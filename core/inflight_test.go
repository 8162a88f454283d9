package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlight_WaitIdle(t *testing.T) {
	f := NewInFlight()
	require.NoError(t, f.Wait(context.Background()))

	f.Increment()
	f.Increment()
	assert.Equal(t, 2, f.Count())
	assert.Equal(t, uint64(2), f.Total())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- f.Wait(context.Background()) }()

	f.Decrement()
	f.Decrement()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after count reached zero")
	}
}

func TestInFlight_ExtraDecrementIgnored(t *testing.T) {
	f := NewInFlight()
	f.Decrement()
	assert.Equal(t, 0, f.Count())

	f.Increment()
	f.Decrement()
	f.Decrement()
	assert.Equal(t, 0, f.Count())
	assert.Equal(t, uint64(1), f.Total())
}
