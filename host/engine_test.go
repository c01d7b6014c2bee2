package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/host"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
	"github.com/AntonStoeckl/embedded-query-engine-go/testutil/testdoubles"
)

const schema = `
datasource "db" {
  provider = "postgresql"
  url      = "postgres://localhost:5432/app"
}

model "User" {
  field "id" {
    type = "Int"
    id   = true
  }
}
`

func newHostEngine(t *testing.T, service *testdoubles.ExecutionServiceFake) *host.Engine {
	t.Helper()

	e, err := host.New(
		host.Params{Datamodel: schema},
		host.WithEngineOptions(engine.WithExecutionService(service)),
		host.WithBlockingOptions(engine.WithRuntimeSize(2)),
	)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return e
}

func Test_New_ReportsSchemaErrorsAsConfigurationErrors(t *testing.T) {
	// act
	_, err := host.New(host.Params{Datamodel: "datasource \"db\" {\n  provider = \n}"})

	// assert
	hostErr := asHostError(t, err)
	assert.Equal(t, host.ConfigurationError, hostErr.Type)
	assert.Contains(t, hostErr.Message, "Validation Error Count: ")
}

func Test_SyncOperations(t *testing.T) {
	// setup
	e := newHostEngine(t, testdoubles.NewExecutionServiceFake())

	// act
	notConnectedErr := e.DisconnectSync()
	connectErr := e.ConnectSync(time.Second)
	alreadyConnectedErr := e.ConnectSync(time.Second)
	response, queryErr := e.QuerySync(`{"query": "{ id }"}`, nil, "")
	disconnectErr := e.DisconnectSync()

	// assert
	assert.Equal(t, host.NotConnectedError, asHostError(t, notConnectedErr).Type)
	require.NoError(t, connectErr)
	assert.Equal(t, host.AlreadyConnectedError, asHostError(t, alreadyConnectedErr).Type)
	require.NoError(t, queryErr)
	assert.JSONEq(t, `{"data": {"echo": "{ id }"}}`, response)
	require.NoError(t, disconnectErr)
	assert.False(t, e.IsConnected())
}

func Test_ConnectSync_TimesOutWithChannelError(t *testing.T) {
	// setup
	service := testdoubles.NewExecutionServiceFake()
	service.BlockConnect = make(chan struct{})
	e := newHostEngine(t, service)
	t.Cleanup(func() { close(service.BlockConnect) })

	// act
	err := e.ConnectSync(0)

	// assert
	hostErr := asHostError(t, err)
	assert.Equal(t, host.ChannelError, hostErr.Type)
	assert.Equal(t, "Channel timed out", hostErr.Message)
}

func Test_AsyncOperations(t *testing.T) {
	// setup
	ctx := context.Background()
	e := newHostEngine(t, testdoubles.NewExecutionServiceFake())

	// act
	connectErr := <-e.ConnectAsync(ctx)
	result := <-e.QueryAsync(ctx, `{"query": `, nil, "")
	disconnectCh := e.DisconnectAsync(ctx)
	disconnectErr := <-disconnectCh
	_, stillOpen := <-disconnectCh

	// assert
	require.NoError(t, connectErr)
	assert.Empty(t, result.Response)
	assert.Equal(t, host.JSONError, asHostError(t, result.Err).Type)
	require.NoError(t, disconnectErr)
	assert.False(t, stillOpen)
}

func Test_ContextOperations(t *testing.T) {
	// setup
	ctx := context.Background()
	service := testdoubles.NewExecutionServiceFake()
	e := newHostEngine(t, service)

	// act
	require.NoError(t, e.Connect(ctx))
	response, err := e.Query(ctx, `{"batch": [{"query": "{ a }"}, {"query": "{ b }"}]}`, map[string]string{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}, "")
	require.NoError(t, e.Disconnect(ctx))

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"batchResult": [null, null]}`, response)
	assert.Equal(t, 1, service.Handled())
}
