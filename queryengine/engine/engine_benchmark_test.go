package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/testutil/testdoubles"
)

func Benchmark_Query_Echo(b *testing.B) {
	// setup
	ctx := context.Background()
	qe := newFakeEngine(b, testdoubles.NewExecutionServiceFake())
	require.NoError(b, qe.Connect(ctx))
	b.Cleanup(func() { _ = qe.Disconnect(ctx) })

	// act
	b.ResetTimer()
	var queryTime time.Duration

	for i := 0; i < b.N; i++ {
		start := time.Now()
		_, err := qe.QueryString(ctx, `{"query": "{ id }"}`, nil, "")
		queryTime += time.Since(start)

		assert.NoError(b, err)
	}

	// assert
	b.ReportMetric(float64(queryTime.Milliseconds())/float64(b.N), "ms/query")
}

func Benchmark_SQLite_FindMany(b *testing.B) {
	// setup
	ctx := context.Background()
	qe := newSQLiteEngine(b)
	require.NoError(b, qe.Connect(ctx))
	b.Cleanup(func() { _ = qe.Disconnect(ctx) })

	// arrange
	_, err := qe.QueryString(ctx, createPostTable, nil, "")
	require.NoError(b, err)
	for range 100 {
		_, err = qe.QueryString(ctx, `{"query": "mutation { createOnePost(data: {title: \"hello\"}) { id } }"}`, nil, "")
		require.NoError(b, err)
	}

	// act
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err = qe.QueryString(ctx, `{"query": "{ findManyPost(take: 10) { id title } }"}`, nil, "")

		assert.NoError(b, err)
	}
}
