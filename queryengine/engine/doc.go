// Package engine implements the query engine lifecycle.
//
// A QueryEngine is always in exactly one of two states:
//
//	Builder    holds the parsed schema and configuration; it can be connected.
//	Connected  additionally owns an executor and the compiled query schema; it answers queries.
//
// Connect and Disconnect hold the engine's write lock for their whole duration, Query holds the
// read lock, so transitions are totally ordered with respect to each other and to every query.
// Invalid transitions fail with typed queryengine errors and never change the state.
//
// Every operation runs inside the engine's log capture scope (see logcapture), so events emitted
// by the executor while serving a call are attributed to that call.
//
// BlockingQueryEngine wraps a QueryEngine for callers without their own scheduling: each call
// is handed to a private goroutine pool and answered through a one-shot channel.
package engine
