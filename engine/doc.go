// Package engine implements the dispatch core: the Agent, the per-request
// dispatch task and the Controller handed back to the caller.
//
// # Lifecycle of a dispatch
//
// Agent.Dispatch validates the options, registers the request and starts one
// goroutine running the task state machine:
//
//	Connecting -> HeadersReceived -> Streaming -> Completed
//	     \______________\________________\______> Errored | Aborted
//
// The task never calls the Handler. Every event is posted to an
// eventloop.Loop, whose single consumer goroutine performs the Handler call.
// Events of one request arrive in the order they were posted, and nothing is
// delivered after its end or error event.
//
// # Flow control
//
// A Controller shares a pause/cancel state with its task. Pause defers the
// next body read; the consumer additionally holds events of a paused request
// until Resume, so a Pause issued from inside OnResponseData stops further
// data deliveries immediately. Abort cancels the task context, which
// interrupts blocked network I/O, and the task ends with RequestAborted.
// Once the task has handed off its terminal event, Abort is a no-op. Pause
// still holds events queued for delivery until the Handler received the
// terminal event, even when the task already read the whole body.
//
// # Errors
//
// Transport failures are classified inside the task and translated into a
// *core.Error before they reach the loop. Native errors stay available via
// errors.Unwrap for logging only.
//
// # Callbacks
//
// A CallbackManager observes each dispatch at three points: before the
// request is sent, when the response head arrives, and after the terminal
// event was handed off. Callbacks run on the task goroutine and cannot
// change the outcome of the exchange.
//
// # Shutdown
//
// Close waits for in-flight requests to reach a terminal event. Destroy
// additionally rejects new dispatches with ErrAgentDestroyed and aborts
// every in-flight request.
package engine
