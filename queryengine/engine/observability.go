package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

const (
	operationConnect    = "connect"
	operationDisconnect = "disconnect"
	operationQuery      = "query"

	spanNamePrefix = "queryengine."

	spanAttrOperation  = "operation"
	spanAttrErrorType  = "error_type"
	spanAttrDurationMS = "duration_ms"

	metricDurationPrefix = "queryengine_"
	metricDurationSuffix = "_duration_seconds"
	metricErrors         = "queryengine_errors_total"
	metricConnected      = "queryengine_connected"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeUnknown = "unknown"

	logMsgOperation           = "queryengine operation: "
	logMsgOperationFailed     = "queryengine operation failed: "
	logMsgCloseExecutorFailed = "closing executor failed"

	logAttrDurationMS = "duration_ms"
	logAttrError      = "error"
	logAttrErrorType  = "error_type"
)

// operationObserver records the span, metrics and log lines of one lifecycle operation.
type operationObserver struct {
	qe        *QueryEngine
	ctx       context.Context
	span      queryengine.SpanContext
	operation string
	start     time.Time
}

// startObservation starts a tracing span if the tracing collector is configured.
func (qe *QueryEngine) startObservation(ctx context.Context, operation string) (*operationObserver, context.Context) {
	var span queryengine.SpanContext

	if qe.tracingCollector != nil {
		ctx, span = qe.tracingCollector.StartSpan(
			ctx,
			spanNamePrefix+operation,
			map[string]string{spanAttrOperation: operation},
		)
	}

	return &operationObserver{
		qe:        qe,
		ctx:       ctx,
		span:      span,
		operation: operation,
		start:     time.Now(),
	}, ctx
}

func (o *operationObserver) finishSuccess() {
	duration := time.Since(o.start)

	if o.span != nil {
		o.span.SetStatus(statusSuccess)
		o.span.AddAttribute(spanAttrDurationMS, formatMilliseconds(duration))
		o.qe.tracingCollector.FinishSpan(o.span, statusSuccess, nil)
	}

	o.qe.recordDuration(o.ctx, o.operation, statusSuccess, duration)
	o.qe.logInfo(o.ctx, logMsgOperation+o.operation, logAttrDurationMS, toMilliseconds(duration))
}

func (o *operationObserver) finishError(err error) {
	duration := time.Since(o.start)
	errorType := errorTypeOf(err)

	if o.span != nil {
		o.span.SetStatus(statusError)
		o.span.AddAttribute(spanAttrErrorType, errorType)
		o.span.AddAttribute(spanAttrDurationMS, formatMilliseconds(duration))
		o.qe.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
	}

	o.qe.recordDuration(o.ctx, o.operation, statusError, duration)
	o.qe.recordError(o.ctx, o.operation, errorType)
	o.qe.logError(
		o.ctx,
		logMsgOperationFailed+o.operation,
		logAttrError, err.Error(),
		logAttrErrorType, errorType,
		logAttrDurationMS, toMilliseconds(duration),
	)
}

func errorTypeOf(err error) string {
	if kind, ok := queryengine.KindOf(err); ok {
		return kind.String()
	}

	return errorTypeUnknown
}

// recordDuration uses the context-aware method if the collector supports it.
func (qe *QueryEngine) recordDuration(ctx context.Context, operation, status string, duration time.Duration) {
	if qe.metricsCollector == nil {
		return
	}

	metric := metricDurationPrefix + operation + metricDurationSuffix
	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := qe.metricsCollector.(queryengine.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	qe.metricsCollector.RecordDuration(metric, duration, labels)
}

func (qe *QueryEngine) recordError(ctx context.Context, operation, errorType string) {
	if qe.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := qe.metricsCollector.(queryengine.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricErrors, labels)
		return
	}

	qe.metricsCollector.IncrementCounter(metricErrors, labels)
}

// recordConnected sets the connected gauge to 1 or 0.
func (qe *QueryEngine) recordConnected(ctx context.Context, connected bool) {
	if qe.metricsCollector == nil {
		return
	}

	value := 0.0
	if connected {
		value = 1
	}

	if contextualCollector, ok := qe.metricsCollector.(queryengine.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricConnected, value, nil)
		return
	}

	qe.metricsCollector.RecordValue(metricConnected, value, nil)
}

// The contextual logger takes precedence over the plain one.

func (qe *QueryEngine) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case qe.contextualLogger != nil:
		qe.contextualLogger.InfoContext(ctx, msg, args...)
	case qe.logger != nil:
		qe.logger.Info(msg, args...)
	}
}

func (qe *QueryEngine) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case qe.contextualLogger != nil:
		qe.contextualLogger.WarnContext(ctx, msg, args...)
	case qe.logger != nil:
		qe.logger.Warn(msg, args...)
	}
}

func (qe *QueryEngine) logError(ctx context.Context, msg string, args ...any) {
	switch {
	case qe.contextualLogger != nil:
		qe.contextualLogger.ErrorContext(ctx, msg, args...)
	case qe.logger != nil:
		qe.logger.Error(msg, args...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", toMilliseconds(d))
}
