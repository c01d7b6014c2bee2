package testdoubles

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

const (
	FakeDBName        = "fake"
	FakeConnectorName = "fake-connector"
	FakeQueryLogMsg   = "fake query handled"
)

// ExecutionServiceFake is an in-memory queryengine.ExecutionService.
// Its failure fields must be set before the fake is handed to an engine.
type ExecutionServiceFake struct {
	LoadErr    error
	ConnectErr error
	BuildErr   error
	CloseErr   error

	// BlockConnect, when set, makes GetConnection wait until it is closed or ctx is done.
	BlockConnect   chan struct{}
	PanicOnConnect bool

	// HandleFunc replaces the default echo response.
	HandleFunc func(ctx context.Context, body queryengine.RequestBody) queryengine.Response

	mu      sync.Mutex
	loads   int
	handled int
	closes  int
	lastURL string
}

// NewExecutionServiceFake returns a fake that connects and echoes every query.
func NewExecutionServiceFake() *ExecutionServiceFake {
	return &ExecutionServiceFake{}
}

func (f *ExecutionServiceFake) Load(
	_ context.Context,
	_ queryengine.Datasource,
	_ []string,
	url string,
) (string, queryengine.Executor, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.loads++
	f.lastURL = url

	if f.LoadErr != nil {
		return "", nil, f.LoadErr
	}

	return FakeDBName, &fakeExecutor{service: f}, nil
}

func (f *ExecutionServiceFake) BuildQuerySchema(
	idm queryengine.InternalDataModel,
	_ bool,
	_ queryengine.Capabilities,
	_ []string,
) (queryengine.QuerySchema, error) {

	if f.BuildErr != nil {
		return nil, f.BuildErr
	}

	return fakeQuerySchema{idm: idm}, nil
}

// Loads returns how often Load was called.
func (f *ExecutionServiceFake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loads
}

// Handled returns how many request bodies the loaded executors answered.
func (f *ExecutionServiceFake) Handled() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.handled
}

// Closes returns how often a loaded executor was closed.
func (f *ExecutionServiceFake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closes
}

// LastURL returns the datasource URL of the last Load.
func (f *ExecutionServiceFake) LastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastURL
}

type fakeQuerySchema struct {
	idm queryengine.InternalDataModel
}

func (s fakeQuerySchema) InternalDataModel() queryengine.InternalDataModel {
	return s.idm
}

type fakeExecutor struct {
	service *ExecutionServiceFake
}

func (e *fakeExecutor) PrimaryConnector() queryengine.Connector {
	return fakeConnector{service: e.service}
}

// Handle emits one query log event per body, the way a SQL connector does.
func (e *fakeExecutor) Handle(
	ctx context.Context,
	body queryengine.RequestBody,
	_ queryengine.QuerySchema,
	_ string,
) queryengine.Response {

	e.service.mu.Lock()
	e.service.handled++
	e.service.mu.Unlock()

	logcapture.FromContext(ctx, logcapture.QueryModule).DebugContext(ctx, FakeQueryLogMsg, logcapture.QueryField, true)

	if e.service.HandleFunc != nil {
		return e.service.HandleFunc(ctx, body)
	}

	if body.IsBatch() {
		return map[string]any{"batchResult": make([]any, len(body.Batch))}
	}

	return map[string]any{"data": map[string]any{"echo": body.Single.Query}}
}

func (e *fakeExecutor) Close() error {
	e.service.mu.Lock()
	defer e.service.mu.Unlock()

	e.service.closes++

	return e.service.CloseErr
}

type fakeConnector struct {
	service *ExecutionServiceFake
}

func (c fakeConnector) Name() string {
	return FakeConnectorName
}

func (c fakeConnector) GetConnection(ctx context.Context) error {
	if c.service.BlockConnect != nil {
		select {
		case <-c.service.BlockConnect:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.service.PanicOnConnect {
		panic("connector blew up")
	}

	return c.service.ConnectErr
}
