// Package reqwest provides a high-level façade over the dispatch engine. Most
// applications interact with this package by:
//  1. Creating a Client via New() or NewFromConfig()
//  2. Streaming responses through a core.Handler with Dispatch, steering them
//     with the returned Controller (Pause, Resume, Abort)
//  3. Or collecting a whole response with Do
//
// The façade delegates the exchange to engine.Agent and owns the event loop
// and telemetry it was built with, releasing them on Close or Destroy.
package reqwest

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/vadimpiven/node-reqwest-sub001/config"
	"github.com/vadimpiven/node-reqwest-sub001/core"
	"github.com/vadimpiven/node-reqwest-sub001/engine"
	"github.com/vadimpiven/node-reqwest-sub001/eventloop"
	"github.com/vadimpiven/node-reqwest-sub001/logging"
	"github.com/vadimpiven/node-reqwest-sub001/observer"
)

// Options configures the Client instance.
type Options struct {
	// Engine configuration (timeouts, pool, limits)
	EngineConfig engine.Config

	// QueueSize gives the Client its own event loop with this capacity.
	// Zero delivers on the process-wide loop.
	QueueSize int

	// Callbacks are registered on the agent in order.
	Callbacks []engine.Callback

	// Observer adds tracing and metrics when set.
	Observer *observer.Observer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Client is the high-level façade aggregating an Agent and its event loop.
type Client struct {
	opts     Options
	agent    *engine.Agent
	loop     *eventloop.Loop
	ownsLoop bool
	shutdown func(context.Context) error
}

// Response is a fully collected exchange.
type Response struct {
	StatusCode    int
	StatusMessage string
	Headers       core.Header
	Body          []byte
	Trailers      core.Header
}

// New creates a new Client with optional overrides.
func New(optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Client{opts: opts, loop: eventloop.Default()}
	if opts.QueueSize > 0 {
		c.loop = eventloop.New(func(o *eventloop.Options) {
			o.QueueSize = opts.QueueSize
			o.Logger = opts.Logger
		})
		c.loop.Start()
		c.ownsLoop = true
	}

	callbacks := engine.NewCallbackManager()
	callbacks.RegisterCallback(opts.Callbacks...)
	if opts.Observer != nil {
		opts.Observer.Register(callbacks)
	}

	agent, err := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Loop = c.loop
		o.Callbacks = callbacks
		o.Logger = opts.Logger
		if opts.Observer != nil {
			o.WrapTransport = opts.Observer.WrapTransport
		}
	})
	if err != nil {
		if c.ownsLoop {
			c.loop.Close()
		}
		return nil, err
	}
	c.agent = agent

	return c, nil
}

// NewFromConfig builds a Client from a loaded config: structured logging per
// [log], its own event loop per [loop], and OTLP export when [observer] is
// enabled.
func NewFromConfig(ctx context.Context, cfg config.Config) (*Client, error) {
	logger := logging.NewLogger(cfg.LoggerConfig()).WithComponent("reqwest")

	var (
		obs      *observer.Observer
		shutdown func(context.Context) error
	)
	if cfg.Observer.Enabled {
		inst, sd, err := observer.Init(ctx, cfg.Observer.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("init observer: %w", err)
		}
		obs = observer.New(inst)
		shutdown = sd
	}

	queueSize := cfg.Loop.QueueSize
	if queueSize <= 0 {
		queueSize = eventloop.DefaultOptions.QueueSize
	}

	c, err := New(func(o *Options) {
		o.EngineConfig = cfg.EngineConfig()
		o.QueueSize = queueSize
		o.Observer = obs
		o.Logger = logger
		o.Callbacks = []engine.Callback{engine.NewLoggingCallback(logger)}
	})
	if err != nil {
		if shutdown != nil {
			_ = shutdown(ctx)
		}
		return nil, err
	}
	c.shutdown = shutdown

	return c, nil
}

// Agent returns the underlying agent.
func (c *Client) Agent() *engine.Agent { return c.agent }

// Dispatch starts a streaming exchange; see engine.Agent.Dispatch.
func (c *Client) Dispatch(ctx context.Context, opts *core.DispatchOptions, h core.Handler) (*engine.Controller, error) {
	return c.agent.Dispatch(ctx, opts, h)
}

// Do is a synchronous helper that collects the whole response. A terminal
// error is returned as *core.Error. Cancelling ctx aborts the exchange.
func (c *Client) Do(ctx context.Context, opts *core.DispatchOptions) (*Response, error) {
	var (
		resp Response
		body bytes.Buffer
	)
	done := make(chan error, 1)

	ctrl, err := c.agent.Dispatch(ctx, opts, core.HandlerFuncs{
		Start: func(statusCode int, headers core.Header, statusMessage string) {
			resp.StatusCode = statusCode
			resp.StatusMessage = statusMessage
			resp.Headers = headers
		},
		Data: func(chunk []byte) {
			body.Write(chunk)
		},
		End: func(trailers core.Header) {
			resp.Trailers = trailers
			done <- nil
		},
		Fail: func(err *core.Error) {
			done <- err
		},
	})
	if err != nil {
		return nil, err
	}

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		resp.Body = body.Bytes()
		return &resp, nil
	case <-ctx.Done():
		ctrl.Abort()
		return nil, ctx.Err()
	case <-c.loop.Done():
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
			resp.Body = body.Bytes()
			return &resp, nil
		default:
			return nil, eventloop.ErrClosed
		}
	}
}

// Stats returns a snapshot of the agent's activity.
func (c *Client) Stats() engine.Stats { return c.agent.Stats() }

// Close waits for in-flight exchanges, then releases the owned event loop and
// telemetry.
func (c *Client) Close(ctx context.Context) error {
	return errors.Join(c.agent.Close(ctx), c.release(ctx))
}

// Destroy aborts in-flight exchanges and rejects new ones, then releases the
// owned event loop and telemetry.
func (c *Client) Destroy(ctx context.Context) error {
	return errors.Join(c.agent.Destroy(ctx), c.release(ctx))
}

func (c *Client) release(ctx context.Context) error {
	var errs []error

	if c.ownsLoop {
		c.loop.Close()
		select {
		case <-c.loop.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for event loop: %w", ctx.Err()))
		}
	}

	if c.shutdown != nil {
		errs = append(errs, c.shutdown(ctx))
		c.shutdown = nil
	}

	return errors.Join(errs...)
}
