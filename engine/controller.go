package engine

// Controller is the caller-facing handle of one dispatch. Its methods only
// flip the shared pause/cancel state; the dispatch task observes the change
// at its next check point. All methods are safe for concurrent use.
//
// Abort is a no-op once the task handed its terminal event to the event
// loop. Pause keeps working until the Handler received that event, so
// chunks of a finished task still queued for delivery are held too; Resume
// releases them.
type Controller struct {
	id       string
	state    *flowState
	onResume func()
}

// ID returns the request identifier.
func (c *Controller) ID() string { return c.id }

// Pause defers the next body fetch and holds events not yet delivered. The
// chunk already being delivered is not revoked. Idempotent; a no-op after
// the Handler received its terminal event.
func (c *Controller) Pause() {
	c.state.pause()
}

// Resume clears a pause and wakes the task. Idempotent; a no-op when not
// paused.
func (c *Controller) Resume() {
	if c.state.resume() && c.onResume != nil {
		c.onResume()
	}
}

// Abort cancels the request irreversibly. A no-op after the terminal event
// was handed to the event loop.
func (c *Controller) Abort() {
	c.state.abort()
}

// Paused reports whether the request is currently paused.
func (c *Controller) Paused() bool { return c.state.isPaused() }

// Done is closed once the terminal event has been handed to the event loop.
func (c *Controller) Done() <-chan struct{} { return c.state.doneCh }
