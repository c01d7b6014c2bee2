// Package oteladapters implements the engine's dependency-free observability interfaces
// (queryengine.ContextualLogger, queryengine.MetricsCollector, queryengine.TracingCollector)
// on top of OpenTelemetry. Pass them to engine.New with engine.WithContextualLogger,
// engine.WithMetrics and engine.WithTracing.
package oteladapters
