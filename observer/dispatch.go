package observer

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vadimpiven/node-reqwest-sub001/core"
	"github.com/vadimpiven/node-reqwest-sub001/engine"
)

const spanKey = "observer.span"

// Observer instruments dispatches through engine callbacks.
type Observer struct {
	inst       *Instruments
	propagator propagation.TextMapPropagator
}

// New creates an Observer that injects W3C trace context headers.
func New(inst *Instruments) *Observer {
	return &Observer{
		inst:       inst,
		propagator: propagation.TraceContext{},
	}
}

// Register adds the observer's callbacks to cm.
func (o *Observer) Register(cm *engine.CallbackManager) {
	cm.RegisterCallback(o.Callbacks()...)
}

// Callbacks returns the before-dispatch, response-start and terminal hooks.
func (o *Observer) Callbacks() []engine.Callback {
	return []engine.Callback{
		engine.NewFunctionCallback(engine.CallbackBeforeDispatch, o.beforeDispatch),
		engine.NewFunctionCallback(engine.CallbackResponseStart, o.responseStart),
		engine.NewFunctionCallback(engine.CallbackTerminal, o.terminal),
	}
}

// WrapTransport adds an HTTP client span around every round trip, as a child
// of the dispatch span.
func (o *Observer) WrapTransport(rt http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(rt,
		otelhttp.WithTracerProvider(o.inst.TracerProvider),
		otelhttp.WithMeterProvider(o.inst.MeterProvider),
		otelhttp.WithPropagators(o.propagator),
	)
}

func (o *Observer) beforeDispatch(ctx context.Context, cc *engine.CallbackContext) error {
	o.inst.Active.Add(ctx, 1, metric.WithAttributes(semconv.HTTPRequestMethodKey.String(string(cc.Method))))

	if cc.Request != nil {
		ctx = cc.Request.Context()
	}
	ctx, span := o.inst.Tracer.Start(ctx, "HTTP "+string(cc.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(cc.Started),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(string(cc.Method)),
			semconv.URLFull(cc.URL),
			AttrRequestID.String(cc.RequestID),
		),
	)
	cc.Metadata[spanKey] = span

	if cc.Request != nil {
		req := cc.Request.WithContext(ctx)
		o.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
		cc.Request = req
	}
	return nil
}

func (o *Observer) responseStart(_ context.Context, cc *engine.CallbackContext) error {
	if span, ok := cc.Metadata[spanKey].(trace.Span); ok {
		span.SetAttributes(semconv.HTTPResponseStatusCode(cc.StatusCode))
		span.AddEvent("response.start")
	}
	return nil
}

func (o *Observer) terminal(ctx context.Context, cc *engine.CallbackContext) error {
	// The request context is usually done by now; metrics must still record.
	ctx = context.WithoutCancel(ctx)

	outcome := OutcomeCompleted
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(string(cc.Method)),
	}
	if cc.StatusCode > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(cc.StatusCode))
	}
	if cc.Err != nil {
		outcome = OutcomeFailed
		if cc.Err.Kind == core.KindRequestAborted {
			outcome = OutcomeAborted
		}
		attrs = append(attrs, semconv.ErrorTypeKey.String(cc.Err.Code()))
	}
	attrs = append(attrs, AttrOutcome.String(outcome))
	set := metric.WithAttributes(attrs...)

	elapsed := time.Since(cc.Started)

	o.inst.Active.Add(ctx, -1, metric.WithAttributes(semconv.HTTPRequestMethodKey.String(string(cc.Method))))
	o.inst.Dispatches.Add(ctx, 1, set)
	o.inst.Duration.Record(ctx, elapsed.Seconds(), set)
	if cc.BodyBytes > 0 {
		o.inst.BodyBytes.Add(ctx, cc.BodyBytes, set)
	}
	if cc.Err != nil {
		o.inst.Errors.Add(ctx, 1, set)
	}

	if span, ok := cc.Metadata[spanKey].(trace.Span); ok {
		span.SetAttributes(AttrOutcome.String(outcome), AttrBodyBytes.Int64(cc.BodyBytes))
		if cc.Err != nil {
			span.RecordError(cc.Err)
			span.SetAttributes(
				semconv.ErrorTypeKey.String(cc.Err.Code()),
				AttrErrorName.String(cc.Err.Name()),
			)
			span.SetStatus(codes.Error, cc.Err.Message)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		ctx = trace.ContextWithSpan(ctx, span)
	}

	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("dispatch completed"))
	if cc.Err != nil {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetBody(otellog.StringValue("dispatch failed"))
	}
	rec.AddAttributes(
		otellog.String("request.id", cc.RequestID),
		otellog.String("http.request.method", string(cc.Method)),
		otellog.String("url.full", cc.URL),
		otellog.Int("http.response.status_code", cc.StatusCode),
		otellog.Int64("body_bytes", cc.BodyBytes),
		otellog.String("outcome", outcome),
		otellog.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
	)
	if cc.Err != nil {
		rec.AddAttributes(otellog.String("error.code", cc.Err.Code()))
	}
	o.inst.Logger.Emit(ctx, rec)

	return nil
}
