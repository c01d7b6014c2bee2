// Package adapters provide database adapter implementations for the query executor.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB (lib/pq), and sqlx.DB (PostgreSQL or SQLite). All adapters provide
// equivalent functionality through a common DBAdapter interface, so the executor builds
// parameterized SQL once and runs it on whichever connection type the datasource selected.
//
// Rows are read positionally as raw column values; typing them is up to the caller.
package adapters
