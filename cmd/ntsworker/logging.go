package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/bond-anton/nts.service/redisclient"
)

// setupLogger builds the worker logger: a stdout handler in the requested
// format teed with the Redis log stream handler, both gated by the shared
// level var so runtime level changes apply everywhere.
func setupLogger(format string, levelVar *slog.LevelVar, client *redisclient.Client, workerName string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelVar}

	var stdout slog.Handler
	switch strings.ToLower(format) {
	case "text":
		stdout = slog.NewTextHandler(os.Stdout, opts)
	default:
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	}

	stream := redisclient.NewStreamHandler(client, workerName, levelVar)

	return slog.New(newTeeHandler(stdout, stream)).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}

// teeHandler fans every record out to all wrapped handlers.
type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) *teeHandler {
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}
