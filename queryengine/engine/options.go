package engine

import (
	"errors"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

var (
	ErrNilSchemaCompiler   = errors.New("nil schema compiler supplied")
	ErrNilExecutionService = errors.New("nil execution service supplied")
	ErrEmptyConfigDir      = errors.New("empty config dir supplied")
	ErrNilCaptureLogger    = errors.New("nil capture logger supplied")
)

// Option defines a functional option for configuring a QueryEngine.
type Option func(*QueryEngine) error

// WithSchemaCompiler replaces the HCL schema compiler.
func WithSchemaCompiler(compiler queryengine.SchemaCompiler) Option {
	return func(qe *QueryEngine) error {
		if compiler == nil {
			return ErrNilSchemaCompiler
		}

		qe.compiler = compiler

		return nil
	}
}

// WithExecutionService replaces the SQL execution service.
func WithExecutionService(service queryengine.ExecutionService) Option {
	return func(qe *QueryEngine) error {
		if service == nil {
			return ErrNilExecutionService
		}

		qe.service = service

		return nil
	}
}

// WithConfigDir sets the directory relative SQLite file URLs are resolved against. Defaults to ".".
func WithConfigDir(dir string) Option {
	return func(qe *QueryEngine) error {
		if dir == "" {
			return ErrEmptyConfigDir
		}

		qe.configDir = dir

		return nil
	}
}

// WithLogOptions passes options to the engine's capture logger, e.g. its output or an event buffer.
func WithLogOptions(options ...logcapture.Option) Option {
	return func(qe *QueryEngine) error {
		qe.logOptions = append(qe.logOptions, options...)
		return nil
	}
}

// WithCaptureLogger replaces the plain capture logger built from Params.LogLevel and Params.LogQueries,
// e.g. with a logcapture.NewWithTelemetry logger.
func WithCaptureLogger(logger *logcapture.ChannelLogger) Option {
	return func(qe *QueryEngine) error {
		if logger == nil {
			return ErrNilCaptureLogger
		}

		qe.captureLogger = logger

		return nil
	}
}

// WithLogger sets the operational logger for the QueryEngine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Info level: connect, disconnect and query outcomes with durations
// Warn level: non-critical issues like executor close failures
// Error level: failed operations.
func WithLogger(logger queryengine.Logger) Option {
	return func(qe *QueryEngine) error {
		qe.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger. It takes precedence over WithLogger.
func WithContextualLogger(logger queryengine.ContextualLogger) Option {
	return func(qe *QueryEngine) error {
		qe.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the QueryEngine.
func WithMetrics(collector queryengine.MetricsCollector) Option {
	return func(qe *QueryEngine) error {
		qe.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the QueryEngine.
func WithTracing(collector queryengine.TracingCollector) Option {
	return func(qe *QueryEngine) error {
		qe.tracingCollector = collector
		return nil
	}
}
