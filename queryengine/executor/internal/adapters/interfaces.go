package adapters

import (
	"context"
	"errors"
)

var ErrLastInsertIDUnsupported = errors.New("last insert id is not supported by this adapter")

// DBQuerier runs statements on a connection pool or inside a transaction.
type DBQuerier interface {
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	Exec(ctx context.Context, query string, args ...any) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the executor.
type DBAdapter interface {
	DBQuerier
	Begin(ctx context.Context) (DBTx, error)
	Ping(ctx context.Context) error
	Close() error
}

// DBTx is a running transaction.
type DBTx interface {
	DBQuerier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Columns() ([]string, error)
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
	LastInsertID() (int64, error)
}
