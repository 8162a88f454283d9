package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMethod is returned for any method outside the supported set.
var ErrInvalidMethod = errors.New("invalid method")

// Method is an HTTP request method from the closed set the engine accepts.
type Method string

const (
	// MethodGet is the GET method.
	MethodGet Method = "GET"
	// MethodPost is the POST method.
	MethodPost Method = "POST"
	// MethodPut is the PUT method.
	MethodPut Method = "PUT"
	// MethodDelete is the DELETE method.
	MethodDelete Method = "DELETE"
	// MethodHead is the HEAD method.
	MethodHead Method = "HEAD"
	// MethodOptions is the OPTIONS method.
	MethodOptions Method = "OPTIONS"
	// MethodPatch is the PATCH method.
	MethodPatch Method = "PATCH"
	// MethodConnect is the CONNECT method. It is accepted as input but every
	// dispatch using it terminates with a NotSupported error.
	MethodConnect Method = "CONNECT"
	// MethodTrace is the TRACE method.
	MethodTrace Method = "TRACE"
)

var methods = map[Method]struct{}{
	MethodGet:     {},
	MethodPost:    {},
	MethodPut:     {},
	MethodDelete:  {},
	MethodHead:    {},
	MethodOptions: {},
	MethodPatch:   {},
	MethodConnect: {},
	MethodTrace:   {},
}

// ParseMethod normalizes s (case-insensitive) into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}

	return m, nil
}

// Valid reports whether m belongs to the supported set. Valid expects the
// normalized upper-case form produced by ParseMethod.
func (m Method) Valid() bool {
	_, ok := methods[m]
	return ok
}

// String returns the method name.
func (m Method) String() string { return string(m) }
