package logcapture_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) events(t *testing.T) []map[string]string {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()

	events := make([]map[string]string, 0)
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}

		event := map[string]string{}
		require.NoError(t, jsoniter.Unmarshal([]byte(line), &event), "every line is one json object: %s", line)
		events = append(events, event)
	}

	return events
}

func Test_ChannelLogger_SerializesCapturedEvents(t *testing.T) {
	// setup
	output := &lockedBuffer{}
	logger, err := logcapture.New("info", false, logcapture.WithOutput(output))
	require.NoError(t, err)

	// act
	err = logger.WithLogging(context.Background(), func(ctx context.Context) error {
		logcapture.FromContext(ctx, "executor").Info("query executed", "rows", 3, "ok", true)
		return nil
	})

	// assert
	require.NoError(t, err)
	events := output.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]string{
		"level":       "INFO",
		"module_path": "executor",
		"message":     "query executed",
		"rows":        "3",
		"ok":          "true",
	}, events[0])
}

func Test_ChannelLogger_FiltersByLevel(t *testing.T) {
	// setup
	output := &lockedBuffer{}
	logger, err := logcapture.New("warn", false, logcapture.WithOutput(output))
	require.NoError(t, err)

	// act
	_ = logger.WithLogging(context.Background(), func(ctx context.Context) error {
		log := logcapture.FromContext(ctx, "engine")
		log.Debug("hidden")
		log.Info("hidden")
		log.Warn("visible")
		return nil
	})

	// assert
	events := output.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "WARN", events[0]["level"])
	assert.Equal(t, "visible", events[0]["message"])
}

func Test_ChannelLogger_QueryLogging(t *testing.T) {
	testCases := []struct {
		name       string
		logQueries bool
		expected   int
	}{
		{name: "disabled", logQueries: false, expected: 0},
		{name: "enabled", logQueries: true, expected: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			output := &lockedBuffer{}
			logger, err := logcapture.New("error", tc.logQueries, logcapture.WithOutput(output))
			require.NoError(t, err)

			// act
			_ = logger.WithLogging(context.Background(), func(ctx context.Context) error {
				logcapture.FromContext(ctx, logcapture.QueryModule).Debug("SELECT 1", logcapture.QueryField, true)
				logcapture.FromContext(ctx, logcapture.QueryModule).Debug("pool checkout")
				return nil
			})

			// assert
			assert.Len(t, output.events(t), tc.expected)
		})
	}
}

func Test_FromContext_DiscardsOutsideScope(t *testing.T) {
	// setup
	output := &lockedBuffer{}
	_, err := logcapture.New("trace", false, logcapture.WithOutput(output))
	require.NoError(t, err)

	// act
	logcapture.FromContext(context.Background(), "engine").Error("nobody listens")
	ctx := logcapture.WithAttrs(context.Background(), "request_id", "r-1")

	// assert
	assert.Empty(t, output.events(t))
	assert.Equal(t, context.Background(), ctx)
}

func Test_WithAttrs_TagsEventsOfTheScope(t *testing.T) {
	// setup
	output := &lockedBuffer{}
	logger, err := logcapture.New("info", false, logcapture.WithOutput(output))
	require.NoError(t, err)

	// act
	_, err = logcapture.WithLogging(context.Background(), logger, func(ctx context.Context) (int, error) {
		ctx = logcapture.WithAttrs(ctx, "request_id", "r-42")
		logcapture.FromContext(ctx, "engine").WithGroup("db").Info("connected", "name", "app")
		return 1, nil
	})

	// assert
	require.NoError(t, err)
	events := output.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "r-42", events[0]["request_id"])
	assert.Equal(t, "app", events[0]["db.name"])
	assert.Equal(t, "engine", events[0]["module_path"])
}

func Test_WithLogging_ReturnsCallbackResult(t *testing.T) {
	logger, err := logcapture.New("info", false, logcapture.WithOutput(&lockedBuffer{}))
	require.NoError(t, err)
	failure := errors.New("connect failed")

	value, err := logcapture.WithLogging(context.Background(), logger, func(context.Context) (string, error) {
		return "partial", failure
	})

	assert.Equal(t, "partial", value)
	assert.ErrorIs(t, err, failure)
}

func Test_ConcurrentScopes_DoNotInterleave(t *testing.T) {
	// setup
	outputA, outputB := &lockedBuffer{}, &lockedBuffer{}
	loggerA, err := logcapture.New("info", false, logcapture.WithOutput(outputA))
	require.NoError(t, err)
	loggerB, err := logcapture.New("info", false, logcapture.WithOutput(outputB))
	require.NoError(t, err)

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = loggerA.WithLogging(context.Background(), func(ctx context.Context) error {
				logcapture.FromContext(ctx, "engine").Info("from a")
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = loggerB.WithLogging(context.Background(), func(ctx context.Context) error {
				logcapture.FromContext(ctx, "engine").Info("from b")
				return nil
			})
		}()
	}
	wg.Wait()

	// assert
	eventsA, eventsB := outputA.events(t), outputB.events(t)
	assert.Len(t, eventsA, 20)
	assert.Len(t, eventsB, 20)
	for _, event := range eventsA {
		assert.Equal(t, "from a", event["message"])
	}
	for _, event := range eventsB {
		assert.Equal(t, "from b", event["message"])
	}
}

func Test_WithLogging_CapturesEventsOfSpawnedGoroutines(t *testing.T) {
	// setup
	output, siblingOutput := &lockedBuffer{}, &lockedBuffer{}
	logger, err := logcapture.New("info", false, logcapture.WithOutput(output))
	require.NoError(t, err)
	sibling, err := logcapture.New("info", false, logcapture.WithOutput(siblingOutput))
	require.NoError(t, err)

	// act
	const workers = 8
	var outer sync.WaitGroup
	outer.Add(2)

	go func() {
		defer outer.Done()
		_ = logger.WithLogging(context.Background(), func(ctx context.Context) error {
			ctx = logcapture.WithAttrs(ctx, "request_id", "r-1")

			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					logcapture.FromContext(ctx, "executor").Info("sub-task done", "worker", i)
				}()
			}
			wg.Wait()

			return nil
		})
	}()

	go func() {
		defer outer.Done()
		_ = sibling.WithLogging(context.Background(), func(ctx context.Context) error {
			logcapture.FromContext(logcapture.WithAttrs(ctx, "request_id", "r-2"), "executor").Info("sibling")
			return nil
		})
	}()

	outer.Wait()

	// assert
	events := output.events(t)
	require.Len(t, events, workers)

	seen := map[string]bool{}
	for _, event := range events {
		assert.Equal(t, "sub-task done", event["message"])
		assert.Equal(t, "r-1", event["request_id"])
		assert.Equal(t, "executor", event["module_path"])
		seen[event["worker"]] = true
	}
	assert.Len(t, seen, workers)

	siblingEvents := siblingOutput.events(t)
	require.Len(t, siblingEvents, 1)
	assert.Equal(t, "sibling", siblingEvents[0]["message"])
	assert.Equal(t, "r-2", siblingEvents[0]["request_id"])
}

func Test_EventBuffer_DropsWhenFull(t *testing.T) {
	// setup
	logger, err := logcapture.New("info", false, logcapture.WithOutput(&lockedBuffer{}), logcapture.WithEventBuffer(2))
	require.NoError(t, err)

	// act
	_ = logger.WithLogging(context.Background(), func(ctx context.Context) error {
		for i := 0; i < 5; i++ {
			logcapture.FromContext(ctx, "engine").Info("event", "n", i)
		}
		return nil
	})

	// assert
	events := logger.Events()
	require.NotNil(t, events)
	assert.Len(t, events, 2)

	first := map[string]string{}
	require.NoError(t, jsoniter.Unmarshal(<-events, &first))
	assert.Equal(t, "0", first["n"])
}

func Test_New_RejectsInvalidOptions(t *testing.T) {
	_, err := logcapture.New("info", false, logcapture.WithOutput(nil))
	assert.ErrorIs(t, err, logcapture.ErrNilOutput)

	_, err = logcapture.New("info", false, logcapture.WithEventBuffer(-1))
	assert.ErrorIs(t, err, logcapture.ErrInvalidEventBuffer)
}
