// Package testutil contains helpers used across tests to reduce boilerplate:
// a recording core.Handler that checks terminal exclusivity and httptest
// server builders for common response shapes. They are not intended for
// production usage.
package testutil
