// Package host is the embedding surface of the query engine.
//
// Every operation exists in three flavors: context-aware (Connect, Disconnect, Query), blocking on the
// engine's private runtime (ConnectSync, DisconnectSync, QuerySync) and asynchronous, returning a
// one-shot channel that yields exactly one result (ConnectAsync, DisconnectAsync, QueryAsync).
//
// All returned errors are *HostError values; see ToHostError for how engine errors are mapped.
package host
