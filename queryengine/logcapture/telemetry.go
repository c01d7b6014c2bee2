package logcapture

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var propagatorOnce sync.Once

// InstallPropagator sets the W3C trace context propagator as the process-wide propagator.
// Only the first call has an effect.
func InstallPropagator() {
	propagatorOnce.Do(func() {
		otel.SetTextMapPropagator(propagation.TraceContext{})
	})
}

// ExtractTraceContext returns ctx carrying the remote span context found in carrier, if any.
func ExtractTraceContext(ctx context.Context, carrier map[string]string) context.Context {
	if len(carrier) == 0 {
		return ctx
	}

	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// NewWithTelemetry creates a logger that captures every event, bridges events to OpenTelemetry logs,
// and exports spans to the OTLP gRPC endpoint (the exporter default when empty).
// It installs the global propagator.
func NewWithTelemetry(ctx context.Context, endpoint string, options ...Option) (*ChannelLogger, error) {
	InstallPropagator()

	l, err := newChannelLogger(options)
	if err != nil {
		return nil, err
	}

	var export sdktrace.TracerProviderOption
	if l.spanExporter != nil {
		export = sdktrace.WithSyncer(l.spanExporter)
	} else {
		exporterOptions := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			exporterOptions = append(exporterOptions, otlptracegrpc.WithEndpoint(endpoint))
		}

		exporter, err := otlptracegrpc.New(ctx, exporterOptions...)
		if err != nil {
			return nil, err
		}

		export = sdktrace.WithBatcher(exporter)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(l.serviceName)))
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(export, sdktrace.WithResource(res))

	bridgeOptions := make([]otelslog.Option, 0, 1)
	if l.loggerProvider != nil {
		bridgeOptions = append(bridgeOptions, otelslog.WithLoggerProvider(l.loggerProvider))
	}

	l.handler = fanoutHandler{
		newEventChannel(l.sink, nil),
		otelslog.NewHandler(instrumentationName, bridgeOptions...),
	}
	l.tracer = tracerProvider.Tracer(instrumentationName)
	l.shutdown = tracerProvider.Shutdown

	return l, nil
}

var _ slog.Handler = fanoutHandler{}
