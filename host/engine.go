package host

import (
	"context"
	"time"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
)

// Params are the construction parameters of an Engine.
type Params = engine.Params

// Option configures an Engine.
type Option func(*Engine) error

// WithEngineOptions passes options to the wrapped engine.QueryEngine.
func WithEngineOptions(options ...engine.Option) Option {
	return func(e *Engine) error {
		e.engineOptions = append(e.engineOptions, options...)
		return nil
	}
}

// WithBlockingOptions passes options to the private runtime of the Sync operations.
func WithBlockingOptions(options ...engine.BlockingOption) Option {
	return func(e *Engine) error {
		e.blockingOptions = append(e.blockingOptions, options...)
		return nil
	}
}

// QueryResult is the single value delivered by QueryAsync.
type QueryResult struct {
	Response string
	Err      error
}

// Engine is a query engine as seen by an embedding host.
type Engine struct {
	engine          *engine.QueryEngine
	blocking        *engine.BlockingQueryEngine
	engineOptions   []engine.Option
	blockingOptions []engine.BlockingOption
}

// New parses the schema in params and returns a disconnected Engine. Close releases it.
func New(params Params, options ...Option) (*Engine, error) {
	e := &Engine{}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, ToHostError(err)
		}
	}

	qe, err := engine.New(params, e.engineOptions...)
	if err != nil {
		return nil, ToHostError(err)
	}

	blocking, err := engine.NewBlockingQueryEngine(qe, e.blockingOptions...)
	if err != nil {
		return nil, ToHostError(err)
	}

	e.engine = qe
	e.blocking = blocking

	return e, nil
}

// Connect connects the engine and checks the datasource is reachable.
func (e *Engine) Connect(ctx context.Context) error {
	return ToHostError(e.engine.Connect(ctx))
}

// Disconnect closes the datasource connection and returns the engine to its disconnected state.
func (e *Engine) Disconnect(ctx context.Context) error {
	return ToHostError(e.engine.Disconnect(ctx))
}

// Query answers a JSON request body with a JSON response.
func (e *Engine) Query(ctx context.Context, body string, trace map[string]string, txID string) (string, error) {
	response, err := e.engine.QueryString(ctx, body, trace, txID)
	if err != nil {
		return "", ToHostError(err)
	}

	return response, nil
}

// ConnectSync fails with a ChannelError if the engine is not connected within timeout.
// The connect attempt itself is not abandoned and may still succeed later.
func (e *Engine) ConnectSync(timeout time.Duration) error {
	return ToHostError(e.blocking.Connect(timeout))
}

// DisconnectSync blocks until Disconnect has finished on the private runtime.
func (e *Engine) DisconnectSync() error {
	return ToHostError(e.blocking.Disconnect())
}

// QuerySync blocks until Query has finished on the private runtime.
func (e *Engine) QuerySync(body string, trace map[string]string, txID string) (string, error) {
	response, err := e.blocking.QueryString(body, trace, txID)
	if err != nil {
		return "", ToHostError(err)
	}

	return response, nil
}

// ConnectAsync runs Connect in the background. The channel delivers exactly one value and is then closed.
func (e *Engine) ConnectAsync(ctx context.Context) <-chan error {
	return async(func() error { return e.Connect(ctx) })
}

// DisconnectAsync runs Disconnect in the background. The channel delivers exactly one value and is then closed.
func (e *Engine) DisconnectAsync(ctx context.Context) <-chan error {
	return async(func() error { return e.Disconnect(ctx) })
}

// QueryAsync runs Query in the background. The channel delivers exactly one QueryResult and is then closed.
func (e *Engine) QueryAsync(ctx context.Context, body string, trace map[string]string, txID string) <-chan QueryResult {
	return async(func() QueryResult {
		response, err := e.Query(ctx, body, trace, txID)
		return QueryResult{Response: response, Err: err}
	})
}

// IsConnected reports whether the engine currently answers queries.
func (e *Engine) IsConnected() bool {
	return e.engine.IsConnected()
}

// Close releases the runtime of the Sync operations. It does not disconnect.
func (e *Engine) Close() {
	e.blocking.Release()
}

func async[T any](fn func() T) <-chan T {
	ch := make(chan T, 1)

	go func() {
		defer close(ch)
		ch <- fn()
	}()

	return ch
}
