package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/komorebi-audio/hub/internal/eventbus"
)

// KindLog is the one event kind the HTTP layer adds on top of component L's
// canonical set (spec.md §4.L enumerates QueueChanged/StatusChanged/
// OutputsChanged/LibraryChanged/Metadata only): the "logs" SSE stream named
// in spec.md §6 has no backing component, so the ops log tap publishes onto
// the same bus under this additional tag.
const KindLog eventbus.Kind = "log"

// LogLine is what LogTapHandler publishes for every log record.
type LogLine struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// LogTapHandler wraps a slog.Handler and additionally publishes every
// record onto the event bus, so GET /sse/logs can tail the same
// structured log stream the process writes to stdout.
type LogTapHandler struct {
	next slog.Handler
	bus  *eventbus.Bus
}

func NewLogTapHandler(next slog.Handler, bus *eventbus.Bus) *LogTapHandler {
	return &LogTapHandler{next: next, bus: bus}
}

func (h *LogTapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *LogTapHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]any, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.bus.Publish(eventbus.Event{Kind: KindLog, Data: LogLine{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   attrs,
	}})
	return h.next.Handle(ctx, record)
}

func (h *LogTapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogTapHandler{next: h.next.WithAttrs(attrs), bus: h.bus}
}

func (h *LogTapHandler) WithGroup(name string) slog.Handler {
	return &LogTapHandler{next: h.next.WithGroup(name), bus: h.bus}
}
