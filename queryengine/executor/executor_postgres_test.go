//go:build integration

package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/executor"
	"github.com/AntonStoeckl/embedded-query-engine-go/testutil/pgtest"
)

const createPostgresUserTable = `CREATE TABLE "User" (
	"id" BIGSERIAL PRIMARY KEY,
	"email" TEXT NOT NULL UNIQUE,
	"name" TEXT,
	"age" BIGINT NOT NULL DEFAULT 0,
	"active" BOOLEAN NOT NULL DEFAULT TRUE,
	"createdAt" TIMESTAMPTZ,
	"profile" JSONB
)`

func newPostgresFixture(t *testing.T, url, adapter string) dbFixture {
	t.Helper()

	ctx := context.Background()
	service, err := executor.NewService()
	require.NoError(t, err)

	datasource := queryengine.Datasource{
		Name:     "db",
		Provider: queryengine.ProviderPostgreSQL,
		Adapter:  adapter,
		URL:      queryengine.StaticURL(url),
	}

	dbName, loaded, err := service.Load(ctx, datasource, nil, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loaded.Close() })

	require.NoError(t, loaded.PrimaryConnector().GetConnection(ctx))

	idm := queryengine.ConvertDatamodel(userDatamodel()).Build(dbName)
	schema, err := service.BuildQuerySchema(idm, true, datasource.Capabilities(), nil)
	require.NoError(t, err)

	fixture := dbFixture{executor: loaded, schema: schema}
	fixture.mustData(t, `mutation { executeRaw(query: "DROP TABLE IF EXISTS \"User\"") }`, nil)
	fixture.mustData(t, `mutation($sql: String!) { executeRaw(query: $sql) }`, map[string]any{"sql": createPostgresUserTable})

	return fixture
}

func Test_Postgres_Handle_WithEveryAdapter(t *testing.T) {
	// setup
	url := pgtest.Start(t)

	for _, adapter := range []string{"pgx", "sql", "sqlx"} {
		t.Run("adapter "+adapter, func(t *testing.T) {
			fixture := newPostgresFixture(t, url, adapter)

			// arrange
			fixture.seedUsers(t)

			// act
			data := fixture.mustData(t, `{
				adults: findManyUser(where: {age: {gte: 30}}, orderBy: {age: asc}) { email age }
				total: countUser
			}`, nil)

			// assert
			adults, ok := data["adults"].([]any)
			require.True(t, ok)
			require.Len(t, adults, 2)
			first, ok := adults[0].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "ada@example.com", first["email"])
			assert.EqualValues(t, 36, first["age"])
			assert.EqualValues(t, 3, data["total"])
		})
	}
}

func Test_Postgres_Handle_UniqueViolation_ReportsP2002(t *testing.T) {
	// setup
	fixture := newPostgresFixture(t, pgtest.Start(t), "pgx")
	fixture.seedUsers(t)

	// act
	response := fixture.handle(
		context.Background(),
		`mutation { createOneUser(data: {email: "ada@example.com", age: 1, active: true}) { id } }`,
		nil,
	)

	// assert
	require.Len(t, response.Errors, 1)
	require.NotNil(t, response.Errors[0].UserFacingError)
	assert.Equal(t, "P2002", response.Errors[0].UserFacingError.ErrorCode)
}
