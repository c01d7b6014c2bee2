package logcapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// LevelTrace is the most verbose level, below slog.LevelDebug.
const LevelTrace = slog.Level(-8)

const levelOff = slog.Level(1 << 30)

var ErrInvalidDirective = errors.New("invalid log directive")

type directive struct {
	module string
	field  string
	level  slog.Level
}

func (d directive) matches(module string, hasField func(string) bool) bool {
	if d.field != "" && !hasField(d.field) {
		return false
	}

	return module == d.module || strings.HasPrefix(module, d.module+"/")
}

// Filter decides which events a plain ChannelLogger captures.
// Directives are comma separated: a bare level ("info"), a module with a level ("executor=debug"),
// or a module with a required field ("connector[{is_query}]=trace"). A directive without a level
// enables everything for its target. The most specific matching directive wins; without a bare
// level the fallback is error.
type Filter struct {
	directives []directive
	fallback   slog.Level
}

// ParseFilter parses a directive list. Invalid directives are skipped and reported in the joined error,
// the returned Filter holds the valid ones.
func ParseFilter(directives string) (Filter, error) {
	filter := Filter{fallback: slog.LevelError}

	var errs []error
	for _, raw := range strings.Split(directives, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if level, ok := parseLevel(raw); ok {
			filter.fallback = level
			continue
		}

		d, err := parseDirective(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		filter.directives = append(filter.directives, d)
	}

	filter.sort()

	return filter, errors.Join(errs...)
}

// WithQueryLogging returns a copy that captures every event of the connector module carrying the is_query field.
func (f Filter) WithQueryLogging() Filter {
	withQueries := Filter{
		directives: append(append([]directive{}, f.directives...), directive{module: QueryModule, field: QueryField, level: LevelTrace}),
		fallback:   f.fallback,
	}
	withQueries.sort()

	return withQueries
}

// Allows reports whether an event at level from module, with the given fields, is captured.
func (f Filter) Allows(level slog.Level, module string, hasField func(string) bool) bool {
	for _, d := range f.directives {
		if d.matches(module, hasField) {
			return level >= d.level
		}
	}

	return level >= f.fallback
}

// MinLevel is the lowest level any directive could capture.
func (f Filter) MinLevel() slog.Level {
	minLevel := f.fallback
	for _, d := range f.directives {
		minLevel = min(minLevel, d.level)
	}

	return minLevel
}

func (f *Filter) sort() {
	sort.SliceStable(f.directives, func(i, j int) bool {
		a, b := f.directives[i], f.directives[j]
		if (a.field != "") != (b.field != "") {
			return a.field != ""
		}

		return len(a.module) > len(b.module)
	})
}

func parseDirective(raw string) (directive, error) {
	target, levelName, hasLevel := strings.Cut(raw, "=")
	d := directive{level: LevelTrace}

	if hasLevel {
		level, ok := parseLevel(levelName)
		if !ok {
			return directive{}, fmt.Errorf("%w: unknown level in %q", ErrInvalidDirective, raw)
		}

		d.level = level
	}

	if open := strings.Index(target, "["); open >= 0 {
		if !strings.HasSuffix(target, "}]") || !strings.HasPrefix(target[open:], "[{") {
			return directive{}, fmt.Errorf("%w: malformed field filter in %q", ErrInvalidDirective, raw)
		}

		d.field = target[open+2 : len(target)-2]
		target = target[:open]
	}

	if target == "" {
		return directive{}, fmt.Errorf("%w: missing module in %q", ErrInvalidDirective, raw)
	}

	d.module = target

	return d, nil
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "off":
		return levelOff, true
	default:
		return 0, false
	}
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
