// Package executor is the SQL execution service behind the query engine.
//
// A Service loads one Executor per connected datasource and compiles the datamodel into a
// GraphQL query schema. The schema exposes, per model M:
//
//	findManyM, findFirstM, findUniqueM, countM         (Query)
//	createOneM, updateManyM, deleteManyM               (Mutation)
//
// plus queryRaw and executeRaw when raw queries are enabled. Requests are validated against
// that schema with gqlparser and translated to parameterized SQL with goqu.
//
// PostgreSQL is reachable through pgxpool (default), database/sql with lib/pq (adapter "sql"),
// or sqlx (adapter "sqlx"). SQLite always uses sqlx on top of modernc.org/sqlite.
//
// Responses are JSON-shaped values: {"data": {...}} on success, {"errors": [...]} on failure,
// and {"batchResult": [...]} for batches.
package executor
