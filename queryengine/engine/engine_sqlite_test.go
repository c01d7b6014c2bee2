package engine_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
)

const sqliteSchema = `
datasource "db" {
  provider = "sqlite"
  url      = "file:dev.db"
}

model "Post" {
  field "id" {
    type          = "Int"
    id            = true
    autoincrement = true
  }

  field "title" {
    type = "String"
  }
}
`

const createPostTable = `{"query": "mutation { executeRaw(query: \"CREATE TABLE Post (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL)\") }"}`

func newSQLiteEngine(t testing.TB) *engine.QueryEngine {
	t.Helper()

	qe, err := engine.New(
		engine.Params{Datamodel: sqliteSchema, LogLevel: "warn"},
		engine.WithConfigDir(t.TempDir()),
	)
	require.NoError(t, err)

	return qe
}

func Test_SQLite_ConnectQueryDisconnectRoundTrip(t *testing.T) {
	// setup
	ctx := context.Background()
	qe := newSQLiteEngine(t)
	require.NoError(t, qe.Connect(ctx))
	t.Cleanup(func() { _ = qe.Disconnect(ctx) })

	// arrange
	_, err := qe.QueryString(ctx, createPostTable, nil, "")
	require.NoError(t, err)

	// act
	created, err := qe.QueryString(ctx, `{"query": "mutation { createOnePost(data: {title: \"hello\"}) { id title } }"}`, nil, "")
	require.NoError(t, err)
	require.NoError(t, qe.Disconnect(ctx))
	require.NoError(t, qe.Connect(ctx))
	found, err := qe.QueryString(ctx, `{"query": "{ findManyPost { title } }"}`, nil, "")

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"createOnePost": {"id": 1, "title": "hello"}}}`, created)
	assert.JSONEq(t, `{"data": {"findManyPost": [{"title": "hello"}]}}`, found)
}

func Test_SQLite_QueryErrorsAreReturnedInTheResponse(t *testing.T) {
	// setup
	ctx := context.Background()
	qe := newSQLiteEngine(t)
	require.NoError(t, qe.Connect(ctx))
	t.Cleanup(func() { _ = qe.Disconnect(ctx) })

	// act
	response, err := qe.QueryString(ctx, `{"query": "{ findManyPost { id } }"}`, nil, "")

	// assert
	require.NoError(t, err)
	assert.Contains(t, response, `"errors"`)
	assert.Contains(t, response, `"error_code":"P2021"`)
}

func Test_SQLite_ConnectFailsForUnreachableDatabaseFile(t *testing.T) {
	// setup
	missingDir := filepath.Join(t.TempDir(), "missing", "nested")
	datamodel := fmt.Sprintf(`
datasource "db" {
  provider = "sqlite"
  url      = "file:%s/dev.db?mode=ro"
}
`, missingDir)

	qe, err := engine.New(engine.Params{Datamodel: datamodel})
	require.NoError(t, err)

	// act
	err = qe.Connect(context.Background())

	// assert
	kind, ok := queryengine.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, queryengine.KindConnector, kind)
	assert.False(t, qe.IsConnected())
}
