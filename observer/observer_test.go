package observer

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vadimpiven/node-reqwest-sub001/core"
	"github.com/vadimpiven/node-reqwest-sub001/engine"
	"github.com/vadimpiven/node-reqwest-sub001/eventloop"
	"github.com/vadimpiven/node-reqwest-sub001/internal/testutil"
)

type harness struct {
	agent  *engine.Agent
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	inst, err := NewInstruments(tp, mp, lognoop.NewLoggerProvider())
	require.NoError(t, err)
	obs := New(inst)

	cm := engine.NewCallbackManager()
	obs.Register(cm)

	loop := eventloop.New()
	loop.Start()

	agent, err := engine.New(func(o *engine.Options) {
		o.Loop = loop
		o.Callbacks = cm
		o.WrapTransport = obs.WrapTransport
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = agent.Destroy(ctx)
		loop.Close()
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
	})

	return &harness{agent: agent, spans: spans, reader: reader}
}

func (h *harness) dispatch(t *testing.T, opts *core.DispatchOptions) *testutil.Recorder {
	t.Helper()
	rec := testutil.NewRecorder()
	ctrl, err := h.agent.Dispatch(context.Background(), opts, rec)
	require.NoError(t, err)

	rec.Wait(t, 5*time.Second)
	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch not released")
	}
	return rec
}

func (h *harness) dispatchSpan(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range h.spans.Ended() {
		for _, kv := range s.Attributes() {
			if kv.Key == AttrRequestID {
				return s
			}
		}
	}
	t.Fatal("no dispatch span recorded")
	return nil
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	return rm
}

func int64Points(rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[int64] {
	var out []metricdata.DataPoint[int64]
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != scopeName {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out = append(out, sum.DataPoints...)
			}
		}
	}
	return out
}

func total(points []metricdata.DataPoint[int64]) int64 {
	var n int64
	for _, dp := range points {
		n += dp.Value
	}
	return n
}

func TestObserver_CompletedDispatch(t *testing.T) {
	var traceparent atomic.Value
	srv := testutil.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("Traceparent"))
		_, _ = w.Write([]byte("Hello, World!"))
	}))
	h := newHarness(t)

	rec := h.dispatch(t, &core.DispatchOptions{Origin: srv.URL, Path: "/", Method: core.MethodGet})
	assert.Equal(t, core.EventResponseEnd, rec.Last().Type)

	span := h.dispatchSpan(t)
	assert.Equal(t, "HTTP GET", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	header, _ := traceparent.Load().(string)
	require.NotEmpty(t, header)
	carrier := propagation.MapCarrier{"traceparent": header}
	sc := propagation.TraceContext{}.Extract(context.Background(), carrier)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(sc).TraceID())

	var child bool
	for _, s := range h.spans.Ended() {
		if s.Parent().SpanID() == span.SpanContext().SpanID() {
			child = true
		}
	}
	assert.True(t, child, "transport span should be a child of the dispatch span")

	rm := h.collect(t)
	assert.EqualValues(t, 1, total(int64Points(rm, "http.client.dispatches")))
	assert.EqualValues(t, 13, total(int64Points(rm, "http.client.response.body.size")))
	assert.Zero(t, total(int64Points(rm, "http.client.dispatches.active")))
	assert.Empty(t, int64Points(rm, "http.client.dispatch.errors"))

	points := int64Points(rm, "http.client.dispatches")
	require.Len(t, points, 1)
	outcome, ok := points[0].Attributes.Value(AttrOutcome)
	require.True(t, ok)
	assert.Equal(t, OutcomeCompleted, outcome.AsString())
}

func TestObserver_FailedDispatch(t *testing.T) {
	srv := testutil.NewServer(t, testutil.StatusHandler(http.StatusNotFound))
	h := newHarness(t)

	rec := h.dispatch(t, &core.DispatchOptions{Origin: srv.URL, Path: "/missing", Method: core.MethodGet, ThrowOnError: true})
	require.NotNil(t, rec.Err())

	span := h.dispatchSpan(t)
	assert.Equal(t, codes.Error, span.Status().Code)

	rm := h.collect(t)
	errs := int64Points(rm, "http.client.dispatch.errors")
	require.Len(t, errs, 1)
	assert.EqualValues(t, 1, errs[0].Value)

	errType, ok := errs[0].Attributes.Value(semconv.ErrorTypeKey)
	require.True(t, ok)
	assert.Equal(t, "UND_ERR_RESPONSE", errType.AsString())

	status, ok := errs[0].Attributes.Value(semconv.HTTPResponseStatusCodeKey)
	require.True(t, ok)
	assert.EqualValues(t, 404, status.AsInt64())
}

func TestObserver_NotSupportedKeepsGaugeBalanced(t *testing.T) {
	h := newHarness(t)

	rec := h.dispatch(t, &core.DispatchOptions{Origin: "localhost:1", Path: "/", Method: core.MethodConnect})
	assert.ErrorIs(t, rec.Err(), core.ErrNotSupported)

	span := h.dispatchSpan(t)
	assert.Equal(t, codes.Error, span.Status().Code)

	rm := h.collect(t)
	assert.Zero(t, total(int64Points(rm, "http.client.dispatches.active")))

	points := int64Points(rm, "http.client.dispatches")
	require.Len(t, points, 1)
	outcome, _ := points[0].Attributes.Value(AttrOutcome)
	assert.Equal(t, OutcomeFailed, outcome.AsString())
}

func TestNewGlobalInstruments(t *testing.T) {
	inst, err := NewGlobalInstruments()
	require.NoError(t, err)
	assert.NotNil(t, inst.Tracer)
	assert.NotNil(t, inst.Logger)
	assert.Len(t, New(inst).Callbacks(), 3)
}
