// Package observer provides OpenTelemetry instrumentation for dispatches.
//
// It plugs into the engine as a set of lifecycle callbacks that emit one
// span, a handful of metrics and one log record per request, and injects the
// W3C trace context into outgoing requests. Exporters are configured through
// the standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/vadimpiven/node-reqwest-sub001/observer"

// Instruments holds all OTEL instruments used by the dispatch callbacks.
type Instruments struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	Dispatches metric.Int64Counter
	Errors     metric.Int64Counter
	BodyBytes  metric.Int64Counter

	// Histograms
	Duration metric.Float64Histogram

	// Gauges
	Active metric.Int64UpDownCounter
}

// Init sets up OTEL trace, metric and log providers with OTLP HTTP exporters
// and installs them globally. Returns a shutdown function that must be called
// on application exit.
func Init(ctx context.Context, serviceName string) (*Instruments, func(context.Context) error, error) {
	if serviceName == "" {
		serviceName = "reqwest"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := NewInstruments(tp, mp, lp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

// NewGlobalInstruments creates Instruments on the global providers, which are
// no-ops unless something installed real ones.
func NewGlobalInstruments() (*Instruments, error) {
	return NewInstruments(otel.GetTracerProvider(), otel.GetMeterProvider(), global.GetLoggerProvider())
}

// NewInstruments creates Instruments on explicit providers.
func NewInstruments(tp trace.TracerProvider, mp metric.MeterProvider, lp otellog.LoggerProvider) (*Instruments, error) {
	meter := mp.Meter(scopeName)

	dispatches, err := meter.Int64Counter("http.client.dispatches",
		metric.WithDescription("Dispatches that reached a terminal event"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	errCount, err := meter.Int64Counter("http.client.dispatch.errors",
		metric.WithDescription("Dispatches that ended with an error, by error code"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	bodyBytes, err := meter.Int64Counter("http.client.response.body.size",
		metric.WithDescription("Response body bytes handed to handlers"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("http.client.dispatch.duration",
		metric.WithDescription("Time from dispatch to terminal event"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter("http.client.dispatches.active",
		metric.WithDescription("Dispatches without a terminal event"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tp.Tracer(scopeName),
		Meter:          meter,
		Logger:         lp.Logger(scopeName),
		Dispatches:     dispatches,
		Errors:         errCount,
		BodyBytes:      bodyBytes,
		Duration:       duration,
		Active:         active,
	}, nil
}
