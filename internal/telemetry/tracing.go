// Package telemetry wires OpenTelemetry tracing and the Prometheus metrics
// that describe provider discovery.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pulseboard/pulse/internal/config"
)

// Tracing holds the tracer provider installed by Setup.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// Tracer returns a named tracer from the installed provider.
func (t *Tracing) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// Setup installs the global tracer provider described by cfg. With
// telemetry disabled it installs nothing and returns a no-op provider.
// stdout is where the stdout exporter writes; nil means os.Stdout.
func Setup(ctx context.Context, cfg config.TelemetryConfig, service, version string, stdout io.Writer) (*Tracing, error) {
	if !cfg.Enabled || os.Getenv("OTEL_SDK_DISABLED") == "true" {
		return &Tracing{provider: noop.NewTracerProvider()}, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(service),
		semconv.ServiceVersionKey.String(version),
		attribute.String("pulse.component", "provider-registry"),
	)

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "stdout":
		if stdout == nil {
			stdout = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(stdout))
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q: %w", cfg.Exporter, config.ErrInvalidConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracing{provider: provider, shutdown: provider.Shutdown}, nil
}
