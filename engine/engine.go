package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/vadimpiven/node-reqwest-sub001/core"
	"github.com/vadimpiven/node-reqwest-sub001/eventloop"
	"github.com/vadimpiven/node-reqwest-sub001/logging"
)

// Config defines the tuning parameters of an Agent.
//
// Zero durations disable the corresponding timeout. Limits set to zero are
// unlimited.
//
// Example:
//
//	cfg := engine.DefaultConfig
//	cfg.RequestTimeout = 30 * time.Second
//	cfg.MaxConcurrentDispatches = 256
type Config struct {
	// RequestTimeout bounds a whole exchange, from connecting to the last
	// body byte. Exceeding it fails the request with ResponseTimeout.
	RequestTimeout time.Duration

	// ConnectTimeout bounds dialing and the TLS handshake. Exceeding it fails
	// the request with ConnectTimeout.
	ConnectTimeout time.Duration

	// HeadersTimeout bounds the wait for the response head once the request
	// was written.
	HeadersTimeout time.Duration

	// IdleTimeout is how long a pooled connection may stay idle.
	IdleTimeout time.Duration

	// MaxIdleConnsPerHost caps the idle pool per origin.
	MaxIdleConnsPerHost int

	// MaxConcurrentDispatches caps the exchanges that hold a connection at
	// the same time. Dispatch itself never blocks; waiting tasks stay in
	// Connecting.
	MaxConcurrentDispatches int

	// RateLimit is the sustained number of requests per second. RateBurst is
	// the bucket size and defaults to 1 when RateLimit is set.
	RateLimit float64
	RateBurst int

	// EnableHTTP2 negotiates HTTP/2 over TLS.
	EnableHTTP2 bool

	// ChunkSize is the size of the read buffer, which is also the upper
	// bound of one delivered body chunk.
	ChunkSize int
}

// DefaultConfig provides the configuration applied before any option.
//
// Configuration values:
//   - RequestTimeout: none
//   - ConnectTimeout: 10s
//   - HeadersTimeout: none
//   - IdleTimeout: 90s
//   - MaxIdleConnsPerHost: 32
//   - MaxConcurrentDispatches: unlimited
//   - RateLimit: unlimited
//   - EnableHTTP2: true
//   - ChunkSize: 64 KiB
var DefaultConfig = Config{
	ConnectTimeout:      10 * time.Second,
	IdleTimeout:         90 * time.Second,
	MaxIdleConnsPerHost: 32,
	EnableHTTP2:         true,
	ChunkSize:           64 * 1024,
}

// Options configures an Agent using the functional options pattern.
//
// Example:
//
//	agent, err := engine.New(func(o *engine.Options) {
//	    o.Config.RequestTimeout = 5 * time.Second
//	    o.Logger = logging.NewDefaultSlogLogger()
//	})
type Options struct {
	// Config contains the operational parameters. Defaults to DefaultConfig.
	Config Config

	// Transport overrides the pooled transport built from Config. The Agent
	// does not close idle connections of a transport it did not build.
	Transport http.RoundTripper

	// WrapTransport, if set, decorates the transport, e.g. with client
	// tracing. Idle connections of the built pool are still released on
	// Close.
	WrapTransport func(http.RoundTripper) http.RoundTripper

	// Loop is the consumer context events are delivered on. Defaults to
	// eventloop.Default(), shared by every Agent of the process.
	Loop *eventloop.Loop

	// Callbacks observe the lifecycle of every dispatch. Optional.
	Callbacks *CallbackManager

	// Logger receives lifecycle records. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Stats is a snapshot of an Agent's activity.
type Stats struct {
	// InFlight is the number of dispatches without a terminal event.
	InFlight int
	// Dispatched is the number of dispatches ever scheduled.
	Dispatched uint64
	// Closed and Destroyed report the lifecycle state.
	Closed    bool
	Destroyed bool
}

// Agent owns a pooled HTTP transport and originates dispatches. Every
// request runs on its own goroutine; its events are handed to the Agent's
// event loop and delivered to the Handler there, one at a time.
//
// An Agent is safe for concurrent use.
type Agent struct {
	config    Config
	transport http.RoundTripper
	pool      *http.Transport // nil when the transport was injected
	loop      *eventloop.Loop
	callbacks *CallbackManager
	logger    logging.Logger

	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	inflight *core.InFlight

	mu        sync.Mutex
	closed    bool
	destroyed bool
	active    map[string]*flowState
}

// New creates an Agent. All options have defaults, so New() returns a
// usable Agent delivering on the process-wide event loop.
func New(optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.ChunkSize <= 0 {
		opts.Config.ChunkSize = DefaultConfig.ChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Loop == nil {
		opts.Loop = eventloop.Default()
	}

	a := &Agent{
		config:    opts.Config,
		transport: opts.Transport,
		loop:      opts.Loop,
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
		inflight:  core.NewInFlight(),
		active:    make(map[string]*flowState),
	}

	if a.transport == nil {
		t, err := newTransport(opts.Config)
		if err != nil {
			return nil, err
		}
		a.transport = t
		a.pool = t
	}
	if opts.WrapTransport != nil {
		a.transport = opts.WrapTransport(a.transport)
	}

	if n := opts.Config.MaxConcurrentDispatches; n > 0 {
		a.sem = semaphore.NewWeighted(int64(n))
	}
	if opts.Config.RateLimit > 0 {
		burst := opts.Config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(opts.Config.RateLimit), burst)
	}

	return a, nil
}

// Dispatch schedules one HTTP exchange and returns its Controller without
// waiting for any network activity.
//
// The error return is reserved for input rejected before a task exists:
// nil options, an invalid method, a missing path or unusable URL, a nil
// handler, or a destroyed Agent. The method is matched case-insensitively
// and opts is never modified. Everything else, including CONNECT and upgrade requests,
// is reported through exactly one terminal Handler call.
//
// ctx bounds the exchange like an abort would: cancelling it fails the
// request with RequestAborted, a deadline fails it with ResponseTimeout.
//
// Example:
//
//	ctrl, err := agent.Dispatch(ctx, &core.DispatchOptions{
//	    Origin: "http://localhost:3000",
//	    Path:   "/",
//	    Method: core.MethodGet,
//	}, handler)
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Abort()
func (a *Agent) Dispatch(ctx context.Context, opts *core.DispatchOptions, handler core.Handler) (*Controller, error) {
	if opts == nil {
		return nil, core.ErrNilOptions
	}
	if handler == nil {
		return nil, core.ErrNilHandler
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	u, err := opts.URL()
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	id := core.NewID()

	taskCtx, cancel := context.WithCancel(ctx)
	if a.config.RequestTimeout > 0 {
		// The deadline is carried by a second context so cancel still
		// releases the timer.
		var cancelTimeout context.CancelFunc
		taskCtx, cancelTimeout = context.WithTimeout(taskCtx, a.config.RequestTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}

	state := newFlowState(cancel)
	s := newSink(handler, state)
	loop := a.loop

	ctrl := &Controller{
		id:    id,
		state: state,
		onResume: func() {
			// Resume may run on the loop goroutine itself; posting from a
			// separate goroutine keeps Post from waiting on its own consumer.
			go loop.Post(s.flush)
		},
	}

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		cancel()
		return nil, ErrAgentDestroyed
	}
	a.active[id] = state
	a.inflight.Increment()
	a.mu.Unlock()

	t := &task{
		agent:  a,
		id:     id,
		opts:   opts,
		url:    u,
		ctx:    taskCtx,
		state:  state,
		sink:   s,
		cancel: cancel,
	}

	a.logger.Debug("dispatch %s %s %s", id, opts.Method, u.Redacted())

	go t.run()

	return ctrl, nil
}

// Abort cancels the dispatch with the given id. It returns an error if no
// such dispatch is in flight.
func (a *Agent) Abort(id string) error {
	a.mu.Lock()
	state, ok := a.active[id]
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("request %s not found", id)
	}

	state.abort()
	return nil
}

// Stats returns a snapshot of the Agent's activity.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		InFlight:   a.inflight.Count(),
		Dispatched: a.inflight.Total(),
		Closed:     a.closed,
		Destroyed:  a.destroyed,
	}
}

// Close waits until every in-flight dispatch has handed off its terminal
// event, then releases idle pooled connections. New dispatches are still
// accepted while Close waits.
func (a *Agent) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	defer a.logger.Info("agent closed")

	return a.shutdown(ctx)
}

// Destroy makes further dispatches fail with ErrAgentDestroyed, aborts
// every in-flight dispatch and waits for their terminal events to be handed
// off. Destroy is idempotent.
func (a *Agent) Destroy(ctx context.Context) error {
	a.mu.Lock()
	a.destroyed = true
	a.closed = true
	states := make([]*flowState, 0, len(a.active))
	for _, st := range a.active {
		states = append(states, st)
	}
	a.mu.Unlock()

	for _, st := range states {
		st.abort()
	}

	a.logger.Info("agent destroyed, aborted %d in-flight requests", len(states))

	return a.shutdown(ctx)
}

func (a *Agent) shutdown(ctx context.Context) error {
	if err := a.inflight.Wait(ctx); err != nil {
		return fmt.Errorf("wait for in-flight requests: %w", err)
	}

	if a.pool != nil {
		a.pool.CloseIdleConnections()
	}

	return nil
}

// release unregisters a finished task.
func (a *Agent) release(id string) {
	a.mu.Lock()
	delete(a.active, id)
	a.mu.Unlock()

	a.inflight.Decrement()
}
