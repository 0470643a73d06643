// Package telemetry installs OpenTelemetry providers and exposes the bot's
// domain counters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gitlab.com/yelinaung/mdfocus-bot"

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config selects where telemetry goes.
type Config struct {
	Exporter     string
	OTLPProtocol string
	ServiceName  string
	Version      string
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers. With ExporterNone it
// installs nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	metricExporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch {
	case cfg.Exporter == ExporterStdout:
		exp, err = stdouttrace.New()
	case cfg.Exporter == ExporterOTLP && cfg.OTLPProtocol == "http/protobuf":
		exp, err = otlptracehttp.New(ctx)
	case cfg.Exporter == ExporterOTLP:
		exp, err = otlptracegrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}
	return exp, nil
}

func newMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch {
	case cfg.Exporter == ExporterStdout:
		exp, err = stdoutmetric.New()
	case cfg.Exporter == ExporterOTLP && cfg.OTLPProtocol == "http/protobuf":
		exp, err = otlpmetrichttp.New(ctx)
	case cfg.Exporter == ExporterOTLP:
		exp, err = otlpmetricgrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	return exp, nil
}

// Tracer returns the bot's tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// HTTPClient returns a client whose requests are traced.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

var (
	pointsRegistered   metric.Int64Counter
	observationsParsed metric.Int64Counter
	storageRecoveries  metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)
	pointsRegistered, _ = meter.Int64Counter("mdfocus.points.registered",
		metric.WithDescription("Daily point registrations"))
	observationsParsed, _ = meter.Int64Counter("mdfocus.observations.parsed",
		metric.WithDescription("Observation notes processed, by outcome"))
	storageRecoveries, _ = meter.Int64Counter("mdfocus.storage.recoveries",
		metric.WithDescription("Stored records recovered or reset, by kind"))
}

// RecordPointsRegistered counts one daily registration.
func RecordPointsRegistered(ctx context.Context) {
	pointsRegistered.Add(ctx, 1)
}

// RecordObservation counts one processed note.
func RecordObservation(ctx context.Context, outcome string) {
	observationsParsed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRecovery counts one storage recovery event.
func RecordRecovery(ctx context.Context, kind string) {
	storageRecoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
