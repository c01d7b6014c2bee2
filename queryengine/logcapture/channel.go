package logcapture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

const (
	eventKeyLevel      = "level"
	eventKeyModulePath = ModulePathKey
	eventKeyMessage    = "message"
)

// sorted keys keep serialized events stable
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventSink serializes writes of one logger's events.
type eventSink struct {
	mu     sync.Mutex
	out    io.Writer
	events chan []byte
}

func (s *eventSink) emit(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		_, _ = s.out.Write(append(line, '\n'))
	}

	if s.events != nil {
		select {
		case s.events <- line:
		default:
			// full buffer drops the event
		}
	}
}

// eventChannel is the slog.Handler behind every ChannelLogger.
// A nil filter captures every event.
type eventChannel struct {
	sink   *eventSink
	filter *Filter
	fields map[string]string
	group  string
}

func newEventChannel(sink *eventSink, filter *Filter) *eventChannel {
	return &eventChannel{sink: sink, filter: filter, fields: map[string]string{}}
}

func (h *eventChannel) Enabled(_ context.Context, level slog.Level) bool {
	return h.filter == nil || level >= h.filter.MinLevel()
}

func (h *eventChannel) Handle(_ context.Context, record slog.Record) error {
	fields := maps.Clone(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(fields, h.group, attr)
		return true
	})

	module := fields[eventKeyModulePath]
	if h.filter != nil {
		hasField := func(name string) bool {
			_, ok := fields[name]
			return ok
		}

		if !h.filter.Allows(record.Level, module, hasField) {
			return nil
		}
	}

	fields[eventKeyLevel] = levelName(record.Level)
	fields[eventKeyModulePath] = module
	fields[eventKeyMessage] = record.Message

	line, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.sink.emit(line)

	return nil
}

func (h *eventChannel) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = maps.Clone(h.fields)
	for _, attr := range attrs {
		flattenAttr(clone.fields, h.group, attr)
	}

	return &clone
}

func (h *eventChannel) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.group = joinKey(h.group, name)

	return &clone
}

func flattenAttr(dst map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = joinKey(prefix, attr.Key)
		}

		for _, member := range attr.Value.Group() {
			flattenAttr(dst, groupPrefix, member)
		}

		return
	}

	dst[joinKey(prefix, attr.Key)] = attr.Value.String()
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + "." + key
}

// fanoutHandler hands every record to all handlers that are enabled for it.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range f {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}

	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make(fanoutHandler, len(f))
	for i, handler := range f {
		handlers[i] = handler.WithAttrs(attrs)
	}

	return handlers
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make(fanoutHandler, len(f))
	for i, handler := range f {
		handlers[i] = handler.WithGroup(name)
	}

	return handlers
}
