package logging

import (
	"context"
	"log/slog"
	"strings"
)

// sinkFloor is below every level a sink can be configured with, so wrapped
// standard handlers never filter on their own.
const sinkFloor = slog.LevelDebug - 4

type levelFloorKey struct{}

// withLevelFloor records a stage level override for the sinks that handle a
// record. The override replaces each sink's configured level, so a stage
// set to debug is shown in detail even on an info console.
func withLevelFloor(ctx context.Context, level slog.Level) context.Context {
	return context.WithValue(ctx, levelFloorKey{}, level)
}

// sinkEnabled reports whether a sink configured at configured accepts level.
func sinkEnabled(ctx context.Context, configured slog.Leveler, level slog.Level) bool {
	if ctx != nil {
		if floor, ok := ctx.Value(levelFloorKey{}).(slog.Level); ok {
			return level >= floor
		}
	}
	return level >= configured.Level()
}

// leveledHandler applies sinkEnabled in front of a standard handler.
type leveledHandler struct {
	next  slog.Handler
	level slog.Leveler
}

func (h *leveledHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return sinkEnabled(ctx, h.level, level)
}

func (h *leveledHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.next.Handle(ctx, record)
}

func (h *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{next: h.next.WithGroup(name), level: h.level}
}

// stageLevelHandler pins the minimum level of one stage's logger across
// every sink below it.
type stageLevelHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *stageLevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *stageLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.next.Handle(withLevelFloor(ctx, h.level), record)
}

func (h *stageLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stageLevelHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *stageLevelHandler) WithGroup(name string) slog.Handler {
	return &stageLevelHandler{next: h.next.WithGroup(name), level: h.level}
}

// withStageLevel returns logger pinned to level. Re-pinning replaces the
// previous level instead of stacking.
func withStageLevel(logger *slog.Logger, level slog.Level) *slog.Logger {
	next := logger.Handler()
	if pinned, ok := next.(*stageLevelHandler); ok {
		next = pinned.next
	}
	return slog.New(&stageLevelHandler{next: next, level: level})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
