// Package logging provides a minimal logging interface and adapters for the
// dispatch engine.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine and the event loop use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - DispatchLogger with request scoped attributes and dispatch helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	agent, err := engine.New(func(o *engine.Options) { o.Logger = logger })
package logging
