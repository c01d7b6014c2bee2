// Package logcapture routes diagnostic events emitted during one engine call to that call's logger.
//
// A ChannelLogger owns an event sink: every captured event is serialized as one compact JSON
// object (level, module_path, message and all fields as strings) and written to the logger's
// output, stdout by default, and optionally to a bounded in-memory channel.
//
// Capture is scoped through the context: WithLogging installs the logger for the duration of
// a callback, and code running inside it obtains a module logger with FromContext. Outside any
// scope FromContext returns a logger that discards everything, so concurrent calls on different
// engines never see each other's events.
//
// A plain logger filters events with directives such as "info" or "executor=debug"; with query
// logging enabled, events of the connector module that carry an is_query field are always
// captured. A telemetry logger captures everything, additionally forwards events to the
// OpenTelemetry log bridge, exports spans over OTLP, and installs the process-wide W3C trace
// context propagator exactly once.
//
// Usage:
//
//	logger, _ := logcapture.New("info", true)
//	err := logger.WithLogging(ctx, func(ctx context.Context) error {
//		logcapture.FromContext(ctx, "executor").Info("query executed", "rows", 3)
//		return nil
//	})
package logcapture
