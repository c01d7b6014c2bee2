// Package queryengine holds the shared vocabulary of the embeddable query engine.
//
// It defines the error taxonomy every layer reports through, the collaborator
// contracts the engine drives (schema compiler, execution service, executor,
// connector), the configuration and datamodel values passed between them, and
// the dependency-free observability interfaces the engine can be instrumented with.
//
// The concrete pieces live in sub-packages:
//   - engine: the lifecycle state machine and the blocking bridge
//   - logcapture: per-call event capture and the global trace propagator
//   - schema: the HCL schema compiler
//   - executor: the SQL execution service (PostgreSQL and SQLite)
//   - oteladapters, promadapters: observability adapters
package queryengine
