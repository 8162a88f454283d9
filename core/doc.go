// Package core provides the foundational domain types and interfaces used by
// the dispatch engine. It defines:
//
//   - DispatchOptions, Method and Header (the per-request input)
//   - Handler (the four response callbacks a consumer implements)
//   - Event (the ordered unit delivered to a Handler)
//   - Error and ErrorKind (the closed, transport independent error taxonomy)
//   - InFlight (the counter graceful shutdown waits on)
//
// The package keeps transport, scheduling and delivery concerns out of scope.
// Those live in the engine and eventloop packages; core only exposes the small
// contracts they share with callers.
package core
