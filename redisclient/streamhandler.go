package redisclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// StreamHandler is a slog.Handler that tees log records into a Redis
// stream, one entry per record with the worker name, timestamp, level, and
// rendered message. Transport failures go to stderr and are never
// propagated; a rate limiter drops excess records so a log flood cannot
// saturate the connection.
type StreamHandler struct {
	client *Client
	worker string
	level  slog.Leveler
	limit  *rate.Limiter
	attrs  []slog.Attr
	group  string
}

// NewStreamHandler creates a handler appending to the client's configured
// log stream. Records below minLevel are skipped.
func NewStreamHandler(client *Client, worker string, minLevel slog.Leveler) *StreamHandler {
	return &StreamHandler{
		client: client,
		worker: worker,
		level:  minLevel,
		limit:  rate.NewLimiter(rate.Limit(100), 200),
	}
}

// Enabled reports whether records at the given level are written.
func (h *StreamHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle appends one record to the log stream.
func (h *StreamHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.limit.Allow() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(record.Message)
	appendAttr := func(a slog.Attr) {
		sb.WriteByte(' ')
		if h.group != "" {
			sb.WriteString(h.group)
			sb.WriteByte('.')
		}
		sb.WriteString(a.Key)
		sb.WriteByte('=')
		sb.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	err := h.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: h.client.logStream,
		Values: map[string]any{
			"worker_name": h.worker,
			"timestamp":   strconv.FormatInt(record.Time.UnixMilli(), 10),
			"log_level":   record.Level.String(),
			"log_message": sb.String(),
		},
	}).Err()
	if err != nil {
		fmt.Fprintf(os.Stderr, "log stream append failed: %v\n", err)
	}
	return nil
}

// WithAttrs returns a handler carrying the extra attributes on every record.
func (h *StreamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler qualifying attribute keys with the group name.
func (h *StreamHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if name != "" {
		if clone.group != "" {
			clone.group += "." + name
		} else {
			clone.group = name
		}
	}
	return &clone
}
