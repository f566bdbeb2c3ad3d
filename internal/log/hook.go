package log

import (
	"context"
	"log/slog"
	"time"
)

// Entry is a flattened log record for in-process consumers such as the
// dashboard log stream.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// HookHandler passes every record to next and, when enabled, to fn.
// Groups are flattened.
type HookHandler struct {
	next  slog.Handler
	fn    func(Entry)
	attrs []slog.Attr
}

// NewHookHandler wraps next.
func NewHookHandler(next slog.Handler, fn func(Entry)) *HookHandler {
	return &HookHandler{next: next, fn: fn}
}

func (h *HookHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *HookHandler) Handle(ctx context.Context, r slog.Record) error {
	e := Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	add := func(a slog.Attr) {
		if a.Key == "component" {
			e.Component = a.Value.String()
			return
		}
		if e.Attrs == nil {
			e.Attrs = make(map[string]any)
		}
		e.Attrs[a.Key] = a.Value.Resolve().Any()
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})
	h.fn(e)
	return h.next.Handle(ctx, r)
}

func (h *HookHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &HookHandler{next: h.next.WithAttrs(attrs), fn: h.fn, attrs: merged}
}

func (h *HookHandler) WithGroup(name string) slog.Handler {
	return &HookHandler{next: h.next.WithGroup(name), fn: h.fn, attrs: h.attrs}
}

// AddHook routes every record of the global logger through fn as well.
// Loggers derived before the call are not affected, so call it before
// building components.
func AddHook(fn func(Entry)) {
	l := slog.New(NewHookHandler(L().Handler(), fn))
	current.Store(l)
	slog.SetDefault(l)
}
