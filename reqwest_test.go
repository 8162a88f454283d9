package reqwest

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimpiven/node-reqwest-sub001/config"
	"github.com/vadimpiven/node-reqwest-sub001/core"
	"github.com/vadimpiven/node-reqwest-sub001/engine"
	"github.com/vadimpiven/node-reqwest-sub001/internal/testutil"
)

func newClient(t *testing.T, optFns ...func(o *Options)) *Client {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) { o.QueueSize = 64 }}, optFns...)
	c, err := New(fns...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Destroy(ctx)
	})
	return c
}

func TestClient_Do(t *testing.T) {
	srv := testutil.NewServer(t, testutil.HelloHandler())

	var terminals atomic.Int32
	c := newClient(t, func(o *Options) {
		o.Callbacks = []engine.Callback{
			engine.NewFunctionCallback(engine.CallbackTerminal, func(context.Context, *engine.CallbackContext) error {
				terminals.Add(1)
				return nil
			}),
		}
	})

	resp, err := c.Do(context.Background(), &core.DispatchOptions{Origin: srv.URL, Path: "/", Method: core.MethodGet})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", resp.StatusMessage)
	assert.Equal(t, "text/plain", resp.Headers.Get("content-type"))
	assert.Equal(t, "Hello, World!", string(resp.Body))
	assert.NotNil(t, resp.Trailers)

	require.Eventually(t, func() bool { return terminals.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), c.Stats().Dispatched)
}

func TestClient_DoError(t *testing.T) {
	srv := testutil.NewServer(t, testutil.StatusHandler(http.StatusTeapot))
	c := newClient(t)

	_, err := c.Do(context.Background(), &core.DispatchOptions{
		Origin:       srv.URL,
		Path:         "/",
		Method:       core.MethodGet,
		ThrowOnError: true,
	})
	require.Error(t, err)

	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, core.KindResponseError, cerr.Kind)
	assert.Equal(t, http.StatusTeapot, cerr.StatusCode)
}

func TestClient_DoRejected(t *testing.T) {
	c := newClient(t)

	_, err := c.Do(context.Background(), &core.DispatchOptions{Origin: "localhost", Path: "/", Method: "BREW"})
	assert.ErrorIs(t, err, core.ErrInvalidMethod)
}

func TestClient_DoCancel(t *testing.T) {
	release := make(chan struct{})
	srv := testutil.NewServer(t, testutil.HangHandler(release, true))
	t.Cleanup(func() { close(release) })
	c := newClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.Do(ctx, &core.DispatchOptions{Origin: srv.URL, Path: "/", Method: core.MethodGet})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, core.ErrRequestAborted), "got %v", err)

	require.Eventually(t, func() bool { return c.Stats().InFlight == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestClient_DestroyRejects(t *testing.T) {
	srv := testutil.NewServer(t, testutil.HelloHandler())
	c := newClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Destroy(ctx))

	_, err := c.Dispatch(context.Background(), &core.DispatchOptions{Origin: srv.URL, Path: "/", Method: core.MethodGet}, testutil.NewRecorder())
	assert.ErrorIs(t, err, engine.ErrAgentDestroyed)
	assert.True(t, c.Stats().Destroyed)
}

func TestNewFromConfig(t *testing.T) {
	srv := testutil.NewServer(t, testutil.HelloHandler())

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Agent.RequestTimeout = config.Duration{Duration: 5 * time.Second}

	c, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, c.ownsLoop)

	rec := testutil.NewRecorder()
	_, err = c.Dispatch(context.Background(), &core.DispatchOptions{Origin: srv.URL, Path: "/", Method: core.MethodGet}, rec)
	require.NoError(t, err)
	rec.Wait(t, 5*time.Second)
	assert.Equal(t, "Hello, World!", string(rec.Body()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Close(ctx))

	select {
	case <-c.loop.Done():
	default:
		t.Fatal("owned event loop still running after Close")
	}
}
