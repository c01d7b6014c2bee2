package queryengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

func Test_DecodeRequestBody_Single(t *testing.T) {
	// act
	body, err := queryengine.DecodeRequestBody([]byte(`{"query":"{ findManyUser { id } }","variables":{"take":1},"operationName":"Q"}`))

	// assert
	require.NoError(t, err)
	require.False(t, body.IsBatch())
	assert.Equal(t, "{ findManyUser { id } }", body.Single.Query)
	assert.Equal(t, "Q", body.Single.OperationName)
	assert.InDelta(t, 1.0, body.Single.Variables["take"], 0)
}

func Test_DecodeRequestBody_Batch(t *testing.T) {
	body, err := queryengine.DecodeRequestBody([]byte(`{"batch":[{"query":"{ a }"},{"query":"{ b }"}],"transaction":true}`))

	require.NoError(t, err)
	assert.True(t, body.IsBatch())
	assert.Len(t, body.Batch, 2)
	assert.True(t, body.Transaction)
}

func Test_DecodeRequestBody_Fails(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "malformed json", input: `{"query": `},
		{name: "not an object", input: `[1,2]`},
		{name: "unknown shape", input: `{"mutation":"x"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := queryengine.DecodeRequestBody([]byte(tc.input))

			assert.Error(t, err)
		})
	}
}
