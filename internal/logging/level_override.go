package logging

import (
	"context"
	"log/slog"
)

// levelFloor enforces a per-logger minimum level while delegating output to
// the wrapped handler.
type levelFloor struct {
	next  slog.Handler
	floor slog.Level
}

func (h *levelFloor) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.floor && h.next.Enabled(ctx, level)
}

func (h *levelFloor) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.floor {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelFloor) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFloor{next: h.next.WithAttrs(attrs), floor: h.floor}
}

func (h *levelFloor) WithGroup(name string) slog.Handler {
	return &levelFloor{next: h.next.WithGroup(name), floor: h.floor}
}

// WithLevelOverride returns a logger that drops records below level while
// preserving existing attributes and handler wiring. It can only raise the
// effective level; records the base handler rejects stay rejected.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if floor, ok := logger.Handler().(*levelFloor); ok {
		return slog.New(&levelFloor{next: floor.next, floor: level})
	}
	return slog.New(&levelFloor{next: logger.Handler(), floor: level})
}
