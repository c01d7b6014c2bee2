package logcapture_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

func noFields(string) bool { return false }

func withField(field string) func(string) bool {
	return func(name string) bool { return name == field }
}

func Test_ParseFilter_Levels(t *testing.T) {
	testCases := []struct {
		directives string
		level      slog.Level
		allowed    bool
	}{
		{directives: "info", level: slog.LevelInfo, allowed: true},
		{directives: "info", level: slog.LevelDebug, allowed: false},
		{directives: "trace", level: logcapture.LevelTrace, allowed: true},
		{directives: "warn", level: slog.LevelInfo, allowed: false},
		{directives: "off", level: slog.LevelError, allowed: false},
		{directives: "", level: slog.LevelWarn, allowed: false},
		{directives: "", level: slog.LevelError, allowed: true},
		{directives: "DEBUG", level: slog.LevelDebug, allowed: true},
	}

	for _, tc := range testCases {
		t.Run(tc.directives+"/"+tc.level.String(), func(t *testing.T) {
			filter, err := logcapture.ParseFilter(tc.directives)

			assert.NoError(t, err)
			assert.Equal(t, tc.allowed, filter.Allows(tc.level, "engine", noFields))
		})
	}
}

func Test_ParseFilter_ModuleDirectivesWinOverFallback(t *testing.T) {
	// act
	filter, err := logcapture.ParseFilter("warn,executor=debug")

	// assert
	assert.NoError(t, err)
	assert.True(t, filter.Allows(slog.LevelDebug, "executor", noFields))
	assert.True(t, filter.Allows(slog.LevelDebug, "executor/sql", noFields))
	assert.False(t, filter.Allows(slog.LevelDebug, "executors", noFields))
	assert.False(t, filter.Allows(slog.LevelInfo, "engine", noFields))
	assert.Equal(t, slog.LevelDebug, filter.MinLevel())
}

func Test_ParseFilter_MoreSpecificModuleWins(t *testing.T) {
	filter, _ := logcapture.ParseFilter("executor=error,executor/sql=trace")

	assert.True(t, filter.Allows(logcapture.LevelTrace, "executor/sql", noFields))
	assert.False(t, filter.Allows(slog.LevelWarn, "executor", noFields))
}

func Test_ParseFilter_FieldDirective(t *testing.T) {
	filter, err := logcapture.ParseFilter("error,connector[{is_query}]")

	assert.NoError(t, err)
	assert.True(t, filter.Allows(logcapture.LevelTrace, "connector", withField("is_query")))
	assert.False(t, filter.Allows(slog.LevelInfo, "connector", noFields))
}

func Test_ParseFilter_SkipsInvalidDirectives(t *testing.T) {
	// act
	filter, err := logcapture.ParseFilter("info,executor=loud,=debug,connector[is_query]")

	// assert
	assert.ErrorIs(t, err, logcapture.ErrInvalidDirective)
	assert.True(t, filter.Allows(slog.LevelInfo, "executor", noFields))
	assert.False(t, filter.Allows(slog.LevelDebug, "executor", noFields))
}

func Test_Filter_WithQueryLogging(t *testing.T) {
	// arrange
	filter, _ := logcapture.ParseFilter("info")

	// act
	withQueries := filter.WithQueryLogging()

	// assert
	assert.False(t, filter.Allows(slog.LevelDebug, logcapture.QueryModule, withField(logcapture.QueryField)))
	assert.True(t, withQueries.Allows(slog.LevelDebug, logcapture.QueryModule, withField(logcapture.QueryField)))
	assert.False(t, withQueries.Allows(slog.LevelDebug, logcapture.QueryModule, noFields))
	assert.Equal(t, logcapture.LevelTrace, withQueries.MinLevel())
}
