package logcapture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// ModulePathKey carries the emitting module of an event.
	ModulePathKey = "module_path"
	// QueryModule and QueryField identify query log events.
	QueryModule = "connector"
	QueryField  = "is_query"

	instrumentationName = "github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	defaultServiceName  = "query-engine-go"
)

var (
	ErrNilOutput          = errors.New("nil log output supplied")
	ErrInvalidEventBuffer = errors.New("event buffer size must not be negative")
	ErrEmptyServiceName   = errors.New("empty service name supplied")
)

// ChannelLogger captures the events emitted inside its scopes.
type ChannelLogger struct {
	output         io.Writer
	eventBuffer    int
	sink           *eventSink
	filter         *Filter
	handler        slog.Handler
	tracer         trace.Tracer
	shutdown       func(context.Context) error
	spanExporter   sdktrace.SpanExporter
	loggerProvider otellog.LoggerProvider
	serviceName    string
}

// Option configures a ChannelLogger.
type Option func(*ChannelLogger) error

// WithOutput replaces stdout as the destination of serialized events.
func WithOutput(output io.Writer) Option {
	return func(l *ChannelLogger) error {
		if output == nil {
			return ErrNilOutput
		}

		l.output = output

		return nil
	}
}

// WithEventBuffer additionally keeps up to size serialized events for Events. Events beyond that are dropped.
func WithEventBuffer(size int) Option {
	return func(l *ChannelLogger) error {
		if size < 0 {
			return ErrInvalidEventBuffer
		}

		l.eventBuffer = size

		return nil
	}
}

// WithSpanExporter makes a telemetry logger export spans synchronously to exporter instead of OTLP.
func WithSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(l *ChannelLogger) error {
		l.spanExporter = exporter
		return nil
	}
}

// WithLoggerProvider sets the OpenTelemetry LoggerProvider a telemetry logger bridges events to.
// The global provider is used otherwise.
func WithLoggerProvider(provider otellog.LoggerProvider) Option {
	return func(l *ChannelLogger) error {
		l.loggerProvider = provider
		return nil
	}
}

// WithServiceName sets the service.name resource attribute of exported spans.
func WithServiceName(name string) Option {
	return func(l *ChannelLogger) error {
		if name == "" {
			return ErrEmptyServiceName
		}

		l.serviceName = name

		return nil
	}
}

func newChannelLogger(options []Option) (*ChannelLogger, error) {
	l := &ChannelLogger{
		output:      os.Stdout,
		serviceName: defaultServiceName,
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	l.sink = &eventSink{out: l.output}
	if l.eventBuffer > 0 {
		l.sink.events = make(chan []byte, l.eventBuffer)
	}

	return l, nil
}

// New creates a plain logger. level is a directive list (see Filter); invalid directives are ignored.
// With logQueries, query events of the connector module are captured regardless of level.
func New(level string, logQueries bool, options ...Option) (*ChannelLogger, error) {
	l, err := newChannelLogger(options)
	if err != nil {
		return nil, err
	}

	filter, _ := ParseFilter(level)
	if logQueries {
		filter = filter.WithQueryLogging()
	}

	l.filter = &filter
	l.handler = newEventChannel(l.sink, l.filter)
	l.tracer = noop.NewTracerProvider().Tracer(instrumentationName)

	return l, nil
}

// Scope returns a context in which FromContext yields loggers writing to l.
func (l *ChannelLogger) Scope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, slog.New(l.handler))
}

// WithLogging runs fn with l installed as the capture scope.
func (l *ChannelLogger) WithLogging(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(l.Scope(ctx))
}

// StartSpan starts a span on the logger's tracer. Plain loggers hand out non-recording spans.
func (l *ChannelLogger) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Events exposes the bounded event buffer, nil without WithEventBuffer.
func (l *ChannelLogger) Events() <-chan []byte {
	return l.sink.events
}

// Shutdown flushes and stops span export of a telemetry logger.
func (l *ChannelLogger) Shutdown(ctx context.Context) error {
	if l.shutdown == nil {
		return nil
	}

	return l.shutdown(ctx)
}

type scopeKey struct{}

// WithLogging runs fn with logger installed as the capture scope and returns fn's result.
func WithLogging[T any](ctx context.Context, logger *ChannelLogger, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(logger.Scope(ctx))
}

// FromContext returns the scoped logger tagged with module, or a discarding logger outside any scope.
func FromContext(ctx context.Context, module string) *slog.Logger {
	logger, ok := ctx.Value(scopeKey{}).(*slog.Logger)
	if !ok {
		return slog.New(slog.DiscardHandler)
	}

	return logger.With(ModulePathKey, module)
}

// WithAttrs adds attributes to every event of the current scope. Outside a scope ctx is returned unchanged.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	logger, ok := ctx.Value(scopeKey{}).(*slog.Logger)
	if !ok {
		return ctx
	}

	return context.WithValue(ctx, scopeKey{}, logger.With(args...))
}
