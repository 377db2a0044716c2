package natsclient

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Bus
type Option func(*Bus)

// WithMaxReconnects sets the reconnect attempt limit
func WithMaxReconnects(n int) Option {
	return func(b *Bus) {
		b.maxReconnects = n
	}
}

// WithReconnectWait sets the wait between reconnect attempts
func WithReconnectWait(wait time.Duration) Option {
	return func(b *Bus) {
		if wait > 0 {
			b.reconnectWait = wait
		}
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(timeout time.Duration) Option {
	return func(b *Bus) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithPollTimeout sets the receive timeout used by the non-blocking
// control-bus poll
func WithPollTimeout(timeout time.Duration) Option {
	return func(b *Bus) {
		if timeout > 0 {
			b.pollTimeout = timeout
		}
	}
}

// WithCredentials sets the NATS credentials file path
func WithCredentials(path string) Option {
	return func(b *Bus) {
		b.credentials = path
	}
}

// WithClientName sets the client name reported to the server
func WithClientName(name string) Option {
	return func(b *Bus) {
		if name != "" {
			b.clientName = name
		}
	}
}

// WithLogger sets a custom logger for connection events
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}
