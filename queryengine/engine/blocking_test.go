package engine_test

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
	"github.com/AntonStoeckl/embedded-query-engine-go/testutil/testdoubles"
)

func newBlockingEngine(
	t *testing.T,
	service *testdoubles.ExecutionServiceFake,
	options ...engine.BlockingOption,
) *engine.BlockingQueryEngine {

	t.Helper()

	blocking, err := engine.NewBlockingQueryEngine(newFakeEngine(t, service), options...)
	require.NoError(t, err)
	t.Cleanup(blocking.Release)

	return blocking
}

func Test_NewBlockingQueryEngine_RejectsInvalidInput(t *testing.T) {
	// setup
	qe := newFakeEngine(t, testdoubles.NewExecutionServiceFake())

	// act
	_, nilEngineErr := engine.NewBlockingQueryEngine(nil)
	_, sizeErr := engine.NewBlockingQueryEngine(qe, engine.WithRuntimeSize(0))
	_, loggerErr := engine.NewBlockingQueryEngine(qe, engine.WithRuntimeLogger(nil))

	// assert
	assert.ErrorIs(t, nilEngineErr, engine.ErrNilEngine)
	assert.ErrorIs(t, sizeErr, engine.ErrInvalidRuntimeSize)
	assert.ErrorIs(t, loggerErr, engine.ErrNilRuntimeLogger)
}

func Test_Blocking_RoundTrip(t *testing.T) {
	// setup
	blocking := newBlockingEngine(t, testdoubles.NewExecutionServiceFake(), engine.WithRuntimeSize(2))

	// act
	connectErr := blocking.Connect(time.Second)
	response, queryErr := blocking.QueryString(`{"query": "{ id }"}`, nil, "")
	disconnectErr := blocking.Disconnect()

	// assert
	require.NoError(t, connectErr)
	require.NoError(t, queryErr)
	require.NoError(t, disconnectErr)
	assert.JSONEq(t, `{"data": {"echo": "{ id }"}}`, response)
	assert.False(t, blocking.Engine().IsConnected())
}

func Test_Blocking_PassesEngineErrorsThrough(t *testing.T) {
	// setup
	blocking := newBlockingEngine(t, testdoubles.NewExecutionServiceFake())

	// act
	_, queryErr := blocking.QueryString(`{"query": "{ id }"}`, nil, "")
	disconnectErr := blocking.Disconnect()

	// assert
	assertKind(t, queryErr, queryengine.KindNotConnected)
	assertKind(t, disconnectErr, queryengine.KindNotConnected)
}

func Test_Blocking_ConnectTimesOut(t *testing.T) {
	// setup
	service := testdoubles.NewExecutionServiceFake()
	service.BlockConnect = make(chan struct{})
	blocking := newBlockingEngine(t, service)

	// act
	err := blocking.Connect(0)

	// assert
	assertKind(t, err, queryengine.KindChannel)
	assert.ErrorIs(t, err, queryengine.ErrChannelTimeout)
	assert.False(t, blocking.Engine().IsConnected())

	close(service.BlockConnect)
	assert.Eventually(t, blocking.Engine().IsConnected, time.Second, 5*time.Millisecond)
}

func Test_Blocking_PanickingTaskReportsDisconnectedChannel(t *testing.T) {
	// setup
	service := testdoubles.NewExecutionServiceFake()
	service.PanicOnConnect = true
	logHandler := testdoubles.NewLogHandlerSpy(false)
	blocking := newBlockingEngine(t, service, engine.WithRuntimeLogger(slog.New(logHandler)))

	// act
	err := blocking.Connect(time.Second)

	// assert
	assertKind(t, err, queryengine.KindChannel)
	assert.ErrorIs(t, err, queryengine.ErrChannelDisconnected)
	assert.False(t, blocking.Engine().IsConnected())
	assert.Eventually(t, func() bool {
		return logHandler.HasErrorLogWithMessage("blocking query engine task panicked").Assert()
	}, time.Second, 5*time.Millisecond)
}

func Test_Blocking_ReleasedRuntimeReportsDisconnectedChannel(t *testing.T) {
	// setup
	blocking := newBlockingEngine(t, testdoubles.NewExecutionServiceFake())
	blocking.Release()

	// act
	err := blocking.Connect(time.Second)

	// assert
	assertKind(t, err, queryengine.KindChannel)
	assert.ErrorIs(t, err, queryengine.ErrChannelDisconnected)
}

func Test_Blocking_ConcurrentQueriesEachGetTheirOwnReply(t *testing.T) {
	// setup
	service := testdoubles.NewExecutionServiceFake()
	blocking := newBlockingEngine(t, service, engine.WithRuntimeSize(4))
	require.NoError(t, blocking.Connect(time.Second))

	// act
	const calls = 16
	responses := make([]string, calls)
	errs := make([]error, calls)

	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i], errs[i] = blocking.QueryString(fmt.Sprintf(`{"query": "{ q%d }"}`, i), nil, "")
		}()
	}
	wg.Wait()

	// assert
	for i := range calls {
		require.NoError(t, errs[i])
		assert.JSONEq(t, fmt.Sprintf(`{"data": {"echo": "{ q%d }"}}`, i), responses[i])
	}
	assert.Equal(t, calls, service.Handled())
}

func Test_Blocking_ConnectTimesOutWhileEveryWorkerIsBusy(t *testing.T) {
	// setup
	service := testdoubles.NewExecutionServiceFake()
	service.BlockConnect = make(chan struct{})
	blocking := newBlockingEngine(t, service, engine.WithRuntimeSize(1))

	// arrange
	firstErr := blocking.Connect(0)
	require.ErrorIs(t, firstErr, queryengine.ErrChannelTimeout)

	// act
	done := make(chan error, 1)
	go func() {
		done <- blocking.Connect(50 * time.Millisecond)
	}()

	// assert
	select {
	case err := <-done:
		assertKind(t, err, queryengine.KindChannel)
		assert.ErrorIs(t, err, queryengine.ErrChannelTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return within its timeout while the runtime was busy")
	}
	assert.False(t, blocking.Engine().IsConnected())

	close(service.BlockConnect)
	assert.Eventually(t, blocking.Engine().IsConnected, time.Second, 5*time.Millisecond)
}
