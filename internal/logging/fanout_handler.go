package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler copies each record to every sink that accepts it. A run logs to
// the console and to its own file through one of these.
type teeHandler []slog.Handler

func newTeeHandler(sinks ...slog.Handler) slog.Handler {
	var kept teeHandler
	for _, sink := range sinks {
		switch typed := sink.(type) {
		case nil, NoopHandler:
		case teeHandler:
			kept = append(kept, typed...)
		default:
			kept = append(kept, sink)
		}
	}
	switch len(kept) {
	case 0:
		return NoopHandler{}
	case 1:
		return kept[0]
	default:
		return kept
	}
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range t {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every accepting sink and joins their errors, so a full
// disk under log_dir does not silence the console.
func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range t {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		if err := sink.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, sink := range t {
		next[i] = fn(sink)
	}
	return next
}

// TeeLogger returns a logger writing to base's handler and to extra sinks.
func TeeLogger(base *slog.Logger, sinks ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newTeeHandler(sinks...))
	}
	return slog.New(newTeeHandler(append([]slog.Handler{base.Handler()}, sinks...)...))
}
