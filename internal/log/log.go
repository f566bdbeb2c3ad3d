// Package log provides the process-wide structured logger for go-guide.
// It wraps slog so every component logs through the same handler.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	current atomic.Pointer[slog.Logger]
	once    sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. format is "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init installs the process logger and makes it the slog default. JSON is
// used when format is "json" or GO_ENV=production. Later calls are no-ops.
func Init(level string, format ...string) {
	once.Do(func() {
		f := "text"
		if len(format) > 0 && format[0] != "" {
			f = format[0]
		}
		if os.Getenv("GO_ENV") == "production" {
			f = "json"
		}
		l := New(os.Stdout, level, f)
		current.Store(l)
		slog.SetDefault(l)
	})
}

// L returns the process logger, initializing it at info level if needed.
func L() *slog.Logger {
	Init("info")
	return current.Load()
}

// Component returns a child logger tagged with the component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
