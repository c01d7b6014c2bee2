package engine_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
	"github.com/AntonStoeckl/embedded-query-engine-go/testutil/testdoubles"
)

const (
	remoteTraceID  = "4bf92f3577b34da6a3ce929d0e0e4736"
	remoteParentID = "00f067aa0ba902b7"
)

func newTelemetryEngine(t *testing.T, exporter *tracetest.InMemoryExporter) *engine.QueryEngine {
	t.Helper()

	logger, err := logcapture.NewWithTelemetry(
		context.Background(),
		"",
		logcapture.WithOutput(io.Discard),
		logcapture.WithEventBuffer(8),
		logcapture.WithSpanExporter(exporter),
		logcapture.WithLoggerProvider(noop.NewLoggerProvider()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Shutdown(context.Background()) })

	qe := newFakeEngine(t, testdoubles.NewExecutionServiceFake(), engine.WithCaptureLogger(logger))
	require.NoError(t, qe.Connect(context.Background()))

	return qe
}

func Test_Telemetry_QuerySpanContinuesTheCallersTrace(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	qe := newTelemetryEngine(t, exporter)

	// act
	_, err := qe.Query(context.Background(), `{"query": "{ id }"}`, map[string]string{
		"traceparent": "00-" + remoteTraceID + "-" + remoteParentID + "-01",
	}, "")

	// assert
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "query", spans[0].Name)
	assert.Equal(t, remoteTraceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, remoteParentID, spans[0].Parent.SpanID().String())
}

func Test_Telemetry_FailedDecodeMarksTheSpan(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	qe := newTelemetryEngine(t, exporter)

	// act
	_, err := qe.Query(context.Background(), `not json`, nil, "")

	// assert
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func Test_Telemetry_CapturesDebugEventsBelowTheLevelFloor(t *testing.T) {
	// setup
	qe := newTelemetryEngine(t, tracetest.NewInMemoryExporter())

	// act
	_, err := qe.Query(context.Background(), `{"query": "{ id }"}`, nil, "")

	// assert
	require.NoError(t, err)
	assert.Len(t, qe.CaptureLogger().Events(), 1)
}
