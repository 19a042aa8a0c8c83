// Package logger provides structured logging setup for ScrumiX.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/scrumix/scrumix/internal/config"
)

const (
	asyncBufferSize = 4096
	asyncWriters    = 2
)

// New creates a JSON *slog.Logger writing to stdout. Every record carries a
// "service" attribute plus the request and user IDs found in its context.
// With Async set, records are written by background workers; the returned
// Closer flushes them.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	var base slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	var closer Closer = nopCloser{}
	if cfg.Async {
		async := NewAsyncHandler(base, asyncBufferSize, asyncWriters)
		base, closer = async, async
	}
	return slog.New(&contextHandler{Handler: base}).With("service", cfg.Service), closer
}

// contextHandler copies request-scoped context values onto each record
// before it reaches the wrapped handler.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if attrs := contextAttrs(ctx); len(attrs) > 0 {
		rec.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
