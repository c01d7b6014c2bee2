package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/executor"
)

func Test_NewQuerySchema_GeneratesOperationsPerModel(t *testing.T) {
	// arrange
	idm := queryengine.ConvertDatamodel(userDatamodel()).Build("main")

	// act
	schema, err := executor.NewQuerySchema(idm, true, queryengine.Capabilities{queryengine.CapabilityInsensitiveFilters}, []string{"metrics"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, idm, schema.InternalDataModel())

	sdl := schema.SDL()
	for _, expected := range []string{
		"findManyUser(where: UserWhereInput, orderBy: [UserOrderByInput!], take: Int, skip: Int): [User!]!",
		"findUniqueUser(where: UserWhereUniqueInput!): User",
		"countUser(where: UserWhereInput): Int!",
		"createOneUser(data: UserCreateInput!): User!",
		"updateManyUser(where: UserWhereInput, data: UserUpdateInput!): AffectedRowsOutput!",
		"deleteManyUser(where: UserWhereInput): AffectedRowsOutput!",
		"queryRaw(query: String!, parameters: Json): Json",
		"executeRaw(query: String!, parameters: Json): Int!",
		"mode: QueryMode",
		"email: String!",
		"name: String\n",
	} {
		assert.Contains(t, sdl, expected)
	}
}

func Test_NewQuerySchema_CreateInputOmitsGeneratedIDs(t *testing.T) {
	// arrange
	idm := queryengine.ConvertDatamodel(userDatamodel()).Build("main")

	// act
	schema, err := executor.NewQuerySchema(idm, false, nil, nil)

	// assert
	require.NoError(t, err)
	assert.Contains(t, schema.SDL(), "input UserCreateInput {\n  email: String!\n")
	assert.NotContains(t, schema.SDL(), "queryRaw")
	assert.NotContains(t, schema.SDL(), "QueryMode")
}

func Test_NewQuerySchema_WithoutModelsAndRawQueries_Fails(t *testing.T) {
	// act
	_, err := executor.NewQuerySchema(queryengine.InternalDataModel{DBName: "main"}, false, nil, nil)

	// assert
	assert.ErrorIs(t, err, executor.ErrEmptyQuerySchema)
}

func Test_NewQuerySchema_RawQueriesOnly(t *testing.T) {
	// act
	schema, err := executor.NewQuerySchema(queryengine.InternalDataModel{DBName: "main"}, true, nil, nil)

	// assert
	require.NoError(t, err)
	assert.Contains(t, schema.SDL(), "type Query {\n  queryRaw")
	assert.Contains(t, schema.SDL(), "type Mutation {\n  executeRaw")
}
