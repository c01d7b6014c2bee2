package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

const (
	defaultRuntimeSize = 4

	logMsgTaskPanicked = "blocking query engine task panicked"
	logAttrPanic       = "panic"
)

var (
	ErrNilEngine          = errors.New("nil query engine supplied")
	ErrInvalidRuntimeSize = errors.New("runtime size must be positive")
	ErrNilRuntimeLogger   = errors.New("nil runtime logger supplied")
)

// BlockingOption defines a functional option for configuring a BlockingQueryEngine.
type BlockingOption func(*BlockingQueryEngine) error

// WithRuntimeSize sets the number of goroutines serving blocking calls.
func WithRuntimeSize(size int) BlockingOption {
	return func(b *BlockingQueryEngine) error {
		if size <= 0 {
			return ErrInvalidRuntimeSize
		}

		b.runtimeSize = size

		return nil
	}
}

// WithRuntimeLogger sets the logger that reports panicking tasks.
func WithRuntimeLogger(logger queryengine.Logger) BlockingOption {
	return func(b *BlockingQueryEngine) error {
		if logger == nil {
			return ErrNilRuntimeLogger
		}

		b.logger = logger

		return nil
	}
}

// BlockingQueryEngine runs QueryEngine operations on a private goroutine pool and blocks the caller
// until the one-shot reply arrives. A task that ends without replying, e.g. by panicking, is reported
// as a ChannelError wrapping queryengine.ErrChannelDisconnected.
//
// Calls may be issued concurrently without external serialization. Each call has its own reply
// channel, and ordering between calls is whatever the QueryEngine lock imposes.
type BlockingQueryEngine struct {
	engine      *QueryEngine
	pool        *ants.Pool
	runtimeSize int
	logger      queryengine.Logger
}

// NewBlockingQueryEngine creates the private runtime for engine.
func NewBlockingQueryEngine(engine *QueryEngine, options ...BlockingOption) (*BlockingQueryEngine, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	b := &BlockingQueryEngine{
		engine:      engine,
		runtimeSize: defaultRuntimeSize,
		logger:      slog.Default(),
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(b.runtimeSize, ants.WithPanicHandler(func(recovered any) {
		b.logger.Error(logMsgTaskPanicked, logAttrPanic, fmt.Sprint(recovered))
	}))
	if err != nil {
		return nil, err
	}

	b.pool = pool

	return b, nil
}

// Engine returns the wrapped engine.
func (b *BlockingQueryEngine) Engine() *QueryEngine {
	return b.engine
}

type reply[T any] struct {
	value T
	err   error
}

// spawn submits fn to the pool without waiting for a free worker. The returned channel yields
// at most one reply and is always closed.
func spawn[T any](pool *ants.Pool, fn func() (T, error)) <-chan reply[T] {
	ch := make(chan reply[T], 1)

	go func() {
		err := pool.Submit(func() {
			defer close(ch)

			value, err := fn()
			ch <- reply[T]{value: value, err: err}
		})
		if err != nil {
			close(ch)
		}
	}()

	return ch
}

func receive[T any](r reply[T], ok bool) (T, error) {
	if !ok {
		var zero T
		return zero, queryengine.NewChannelError(queryengine.ErrChannelDisconnected)
	}

	return r.value, r.err
}

// Connect blocks until the engine is connected or timeout has passed. The timeout also covers
// waiting for a free runtime worker. On timeout the connect task keeps running or stays queued
// and may still complete the transition.
func (b *BlockingQueryEngine) Connect(timeout time.Duration) error {
	ch := spawn(b.pool, func() (struct{}, error) {
		return struct{}{}, b.engine.Connect(context.Background())
	})

	select {
	case r, ok := <-ch:
		_, err := receive(r, ok)
		return err
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r, ok := <-ch:
		_, err := receive(r, ok)
		return err
	case <-timer.C:
		return queryengine.NewChannelError(queryengine.ErrChannelTimeout)
	}
}

// Disconnect blocks until the engine is back in the Builder state and returns the engine's error.
func (b *BlockingQueryEngine) Disconnect() error {
	ch := spawn(b.pool, func() (struct{}, error) {
		return struct{}{}, b.engine.Disconnect(context.Background())
	})

	r, ok := <-ch
	_, err := receive(r, ok)

	return err
}

// QueryString blocks until the JSON encoded response of body is available.
func (b *BlockingQueryEngine) QueryString(body string, trace map[string]string, txID string) (string, error) {
	ch := spawn(b.pool, func() (string, error) {
		return b.engine.QueryString(context.Background(), body, trace, txID)
	})

	r, ok := <-ch

	return receive(r, ok)
}

// Release stops the runtime. Running tasks complete; new calls fail with a ChannelError.
func (b *BlockingQueryEngine) Release() {
	b.pool.Release()
}
