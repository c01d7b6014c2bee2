package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	attrStatus = "status"

	descriptionFailed = "query engine operation failed"
)

// TracingCollector starts one OpenTelemetry span per engine operation.
type TracingCollector struct {
	tracer trace.Tracer
}

func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, queryengine.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))

	return spanCtx, &SpanContext{span: span}
}

// FinishSpan ends spans started by this collector and ignores any other SpanContext.
func (t *TracingCollector) FinishSpan(spanCtx queryengine.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*SpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ queryengine.TracingCollector = (*TracingCollector)(nil)

// SpanContext wraps an OpenTelemetry span.
type SpanContext struct {
	span trace.Span
}

// SetStatus maps success and error to span status codes. Other values are kept as a status attribute.
func (s *SpanContext) SetStatus(status string) {
	switch status {
	case statusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case statusError:
		s.span.SetStatus(codes.Error, descriptionFailed)
	default:
		s.span.SetAttributes(attributes(map[string]string{attrStatus: status})...)
	}
}

func (s *SpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attributes(map[string]string{key: value})...)
}

var _ queryengine.SpanContext = (*SpanContext)(nil)
