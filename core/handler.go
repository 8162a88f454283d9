package core

// Handler receives the events of one dispatch. Implementations are invoked
// from the single consumer goroutine of an eventloop.Loop, one call at a time.
//
// For a single request the call sequence is exactly one of
//
//	OnResponseStart, OnResponseData*, OnResponseEnd
//	OnResponseStart?, OnResponseError
//
// and nothing is called after OnResponseEnd or OnResponseError.
type Handler interface {
	// OnResponseStart is called at most once, when the status line and
	// headers arrive.
	OnResponseStart(statusCode int, headers Header, statusMessage string)
	// OnResponseData is called for each non-empty body chunk in wire order.
	OnResponseData(chunk []byte)
	// OnResponseEnd is called once at end of body. trailers is never nil.
	OnResponseEnd(trailers Header)
	// OnResponseError is called once when the exchange fails or is aborted.
	OnResponseError(err *Error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Start func(statusCode int, headers Header, statusMessage string)
	Data  func(chunk []byte)
	End   func(trailers Header)
	Fail  func(err *Error)
}

// OnResponseStart implements Handler.
func (f HandlerFuncs) OnResponseStart(statusCode int, headers Header, statusMessage string) {
	if f.Start != nil {
		f.Start(statusCode, headers, statusMessage)
	}
}

// OnResponseData implements Handler.
func (f HandlerFuncs) OnResponseData(chunk []byte) {
	if f.Data != nil {
		f.Data(chunk)
	}
}

// OnResponseEnd implements Handler.
func (f HandlerFuncs) OnResponseEnd(trailers Header) {
	if f.End != nil {
		f.End(trailers)
	}
}

// OnResponseError implements Handler.
func (f HandlerFuncs) OnResponseError(err *Error) {
	if f.Fail != nil {
		f.Fail(err)
	}
}
