package redisclient

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Client
type Option func(*Client)

// WithPassword sets the connection password
func WithPassword(password string) Option {
	return func(c *Client) {
		c.password = password
	}
}

// WithDB selects the logical database
func WithDB(db int) Option {
	return func(c *Client) {
		c.db = db
	}
}

// WithDialTimeout sets the connection dial timeout
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.dialTimeout = timeout
		}
	}
}

// WithPollTimeout sets the receive timeout used by the non-blocking
// control-bus poll
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.pollTimeout = timeout
		}
	}
}

// WithLogStream sets the stream key the log handler appends to
func WithLogStream(stream string) Option {
	return func(c *Client) {
		if stream != "" {
			c.logStream = stream
		}
	}
}

// WithLogger sets a custom logger for connection events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
