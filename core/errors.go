package core

import "fmt"

// ErrorKind identifies one member of the closed error taxonomy.
type ErrorKind int

const (
	// KindRequestAborted is an explicit cancellation by the caller.
	KindRequestAborted ErrorKind = iota + 1
	// KindConnectTimeout is a timeout while establishing the connection.
	KindConnectTimeout
	// KindResponseTimeout is a timeout while waiting for or reading the response.
	KindResponseTimeout
	// KindNetwork is any other transport or connection failure.
	KindNetwork
	// KindResponseError is an HTTP status surfaced as an error.
	KindResponseError
	// KindNotSupported is a CONNECT or upgrade request.
	KindNotSupported
)

var kindInfo = map[ErrorKind]struct {
	code, name, message string
}{
	KindRequestAborted:  {"UND_ERR_ABORTED", "AbortError", "Request aborted"},
	KindConnectTimeout:  {"UND_ERR_CONNECT_TIMEOUT", "ConnectTimeoutError", "Connect Timeout Error"},
	KindResponseTimeout: {"UND_ERR_RESPONSE_TIMEOUT", "ResponseTimeoutError", "Response Timeout Error"},
	KindNetwork:         {"UND_ERR_SOCKET", "SocketError", "Socket error"},
	KindResponseError:   {"UND_ERR_RESPONSE", "ResponseError", "Response Error"},
	KindNotSupported:    {"UND_ERR_NOT_SUPPORTED", "NotSupportedError", "Not supported"},
}

// Code returns the stable machine-readable code of the kind.
func (k ErrorKind) Code() string { return kindInfo[k].code }

// Name returns the stable error class name of the kind.
func (k ErrorKind) Name() string { return kindInfo[k].name }

// String returns the kind name.
func (k ErrorKind) String() string {
	if n := kindInfo[k].name; n != "" {
		return n
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrRequestAborted  = &Error{Kind: KindRequestAborted}
	ErrConnectTimeout  = &Error{Kind: KindConnectTimeout}
	ErrResponseTimeout = &Error{Kind: KindResponseTimeout}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrResponse        = &Error{Kind: KindResponseError}
	ErrNotSupported    = &Error{Kind: KindNotSupported}
)

// Error is the only error representation handed to a Handler. The transport
// failure that caused it, if any, is reachable through Unwrap but never part
// of Info.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	cause      error
}

// ErrorInfo is the shape delivered to the boundary layer. StatusCode is set
// only for ResponseError.
type ErrorInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode *int   `json:"statusCode,omitempty"`
}

func newError(kind ErrorKind, msg string, cause error) *Error {
	if msg == "" {
		msg = kindInfo[kind].message
	}
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// NewAbortedError returns a RequestAborted error.
func NewAbortedError() *Error { return newError(KindRequestAborted, "", nil) }

// NewConnectTimeoutError returns a ConnectTimeout error.
func NewConnectTimeoutError(cause error) *Error {
	return newError(KindConnectTimeout, "", cause)
}

// NewResponseTimeoutError returns a ResponseTimeout error.
func NewResponseTimeoutError(cause error) *Error {
	return newError(KindResponseTimeout, "", cause)
}

// NewNetworkError returns a Network error carrying msg.
func NewNetworkError(msg string, cause error) *Error {
	return newError(KindNetwork, msg, cause)
}

// NewResponseError returns a ResponseError for the given HTTP status.
func NewResponseError(statusCode int, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("Response status code %d", statusCode)
	}
	e := newError(KindResponseError, msg, nil)
	e.StatusCode = statusCode
	return e
}

// NewNotSupportedError returns a NotSupported error carrying msg.
func NewNotSupportedError(msg string) *Error {
	return newError(KindNotSupported, msg, nil)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Name()
	}
	return e.Kind.Name() + ": " + e.Message
}

// Unwrap returns the underlying transport failure, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Code returns the stable code of the error kind.
func (e *Error) Code() string { return e.Kind.Code() }

// Name returns the stable name of the error kind.
func (e *Error) Name() string { return e.Kind.Name() }

// Info returns the boundary representation of e.
func (e *Error) Info() ErrorInfo {
	info := ErrorInfo{Code: e.Kind.Code(), Name: e.Kind.Name(), Message: e.Message}
	if e.Kind == KindResponseError {
		sc := e.StatusCode
		info.StatusCode = &sc
	}
	return info
}
