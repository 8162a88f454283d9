package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/vadimpiven/node-reqwest-sub001/logging"
)

var (
	// ErrClosed is reported when a closure is posted to a closed Loop.
	ErrClosed = errors.New("eventloop: closed")
	// ErrRunning is returned by Run when a consumer is already attached.
	ErrRunning = errors.New("eventloop: consumer already running")

	errQueueFull = errors.New("eventloop: queue full")
)

// Options configures a Loop.
type Options struct {
	// QueueSize bounds the number of accepted but not yet executed closures.
	QueueSize int
	// NewBackOff returns the policy used while the queue is full. Defaults to
	// a capped exponential backoff.
	NewBackOff func() backoff.BackOff
	// Logger receives drop and panic reports. Defaults to NoOpLogger.
	Logger logging.Logger
}

// DefaultOptions are applied before any option function.
var DefaultOptions = Options{
	QueueSize: 4096,
}

// Loop is a single-consumer, multi-producer ordered executor.
type Loop struct {
	queue      chan func()
	newBackOff func() backoff.BackOff
	logger     logging.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	running   atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// New creates a Loop. The consumer is not started; call Start or Run.
func New(optFns ...func(o *Options)) *Loop {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions.QueueSize
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Loop{
		queue:      make(chan func(), opts.QueueSize),
		newBackOff: opts.NewBackOff,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Microsecond
	b.MaxInterval = 10 * time.Millisecond
	return b
}

var (
	defaultLoop     *Loop
	defaultLoopOnce sync.Once
)

// Default returns the process-wide Loop, starting it on first use.
func Default() *Loop {
	defaultLoopOnce.Do(func() {
		defaultLoop = New()
		defaultLoop.Start()
	})
	return defaultLoop
}

// Start runs the consumer on a new goroutine. Calling Start on a Loop that
// already has a consumer is a no-op.
func (l *Loop) Start() {
	if l.running.Load() {
		return
	}
	ready := make(chan struct{})
	go func() {
		_ = l.run(context.Background(), ready)
	}()
	<-ready
}

// Run attaches the calling goroutine as the consumer and processes closures
// until ctx is done or the Loop is closed. The Loop is closed when Run
// returns, because nothing will consume it afterwards.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, nil)
}

func (l *Loop) run(ctx context.Context, ready chan<- struct{}) error {
	if !l.running.CompareAndSwap(false, true) {
		if ready != nil {
			close(ready)
		}
		return ErrRunning
	}
	if ready != nil {
		close(ready)
	}
	defer close(l.stopped)
	defer l.Close()

	for {
		select {
		case fn := <-l.queue:
			l.invoke(fn)
		case <-l.ctx.Done():
			l.drain()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain runs closures that were accepted before Close.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.queue:
			l.invoke(fn)
		default:
			return
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("eventloop: closure panicked: %v", p)
		}
	}()
	fn()
}

// Post enqueues fn. It returns false when fn was dropped because the Loop is
// closed. A full queue makes Post back off and retry; it never waits for the
// consumer in any other way.
func (l *Loop) Post(fn func()) bool {
	if err := l.ctx.Err(); err != nil {
		l.drop()
		return false
	}

	select {
	case l.queue <- fn:
		return true
	default:
	}

	_, err := backoff.Retry(l.ctx, func() (struct{}, error) {
		if l.ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ErrClosed)
		}
		select {
		case l.queue <- fn:
			return struct{}{}, nil
		default:
			return struct{}{}, errQueueFull
		}
	}, backoff.WithBackOff(l.newBackOff()), backoff.WithMaxElapsedTime(0))
	if err != nil {
		l.drop()
		return false
	}

	return true
}

func (l *Loop) drop() {
	n := l.dropped.Add(1)
	if n == 1 || n%1024 == 0 {
		l.logger.Warn("eventloop: dropped closure posted after close (total %d)", n)
	}
}

// Sync blocks until every closure accepted before the call has run.
func (l *Loop) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !l.Post(func() { close(done) }) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return fmt.Errorf("eventloop sync: %w", ctx.Err())
	}
}

// Close stops accepting closures. Closures already accepted still run
// before the consumer exits. Close is idempotent and does not wait.
func (l *Loop) Close() {
	l.closeOnce.Do(l.cancel)
}

// Done is closed after the consumer has exited.
func (l *Loop) Done() <-chan struct{} { return l.stopped }

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool { return l.ctx.Err() != nil }

// Len returns the number of accepted closures not yet executed.
func (l *Loop) Len() int { return len(l.queue) }

// Dropped returns how many closures were dropped after close.
func (l *Loop) Dropped() uint64 { return l.dropped.Load() }
