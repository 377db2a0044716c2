package control

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bond-anton/nts.service/errors"
)

// Built-in commands handled by the channel itself rather than the executor.
const (
	cmdExit  = "exit"
	cmdDelay = "delay"
)

// Executor handles commands the channel does not understand. It returns true
// when the command was executed successfully. The default executor rejects
// everything, including the empty command produced by malformed payloads.
type Executor func(ctx context.Context, cmd string, params []string) bool

// DefaultExecutor rejects every command.
func DefaultExecutor(_ context.Context, _ string, _ []string) bool {
	return false
}

// Sink receives the loop-state mutations decoded from built-in commands.
// The worker implements this interface.
type Sink interface {
	// RequestExit marks the loop for shutdown at the next safe point
	RequestExit()
	// SetDelay updates the loop delay in seconds; negative values are
	// rejected with no state change
	SetDelay(seconds float64) error
}

// ChannelOption is a functional option for configuring the Channel
type ChannelOption func(*Channel)

// WithExecutor sets the executor for commands not handled by the channel
func WithExecutor(exec Executor) ChannelOption {
	return func(c *Channel) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets a custom logger for the channel
func WithLogger(logger *slog.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Recorder receives control-channel instrumentation events. The metric
// package's Metrics type satisfies it.
type Recorder interface {
	RecordMessageReceived(worker string)
	RecordCommandDispatched(worker, command, status string)
}

// WithRecorder enables instrumentation of received messages and dispatched
// commands under the given worker name
func WithRecorder(recorder Recorder, worker string) ChannelOption {
	return func(c *Channel) {
		c.recorder = recorder
		c.worker = worker
	}
}

// Channel subscribes to a single control topic and dispatches decoded
// commands: built-ins mutate loop state through the Sink, everything else is
// forwarded to the executor. No error or panic escapes DrainPending; all
// failure modes degrade to warnings.
type Channel struct {
	bus      Bus
	topic    string
	exec     Executor
	logger   *slog.Logger
	recorder Recorder
	worker   string
}

// NewChannel creates a control channel bound to the given topic.
func NewChannel(bus Bus, topic string, opts ...ChannelOption) *Channel {
	c := &Channel{
		bus:    bus,
		topic:  topic,
		exec:   DefaultExecutor,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Topic returns the bound control topic.
func (c *Channel) Topic() string {
	return c.topic
}

// Subscribe binds the underlying bus to the channel's topic.
func (c *Channel) Subscribe(ctx context.Context) error {
	if err := c.bus.Subscribe(ctx, c.topic); err != nil {
		return errors.Wrap(err, "Channel", "Subscribe", "bind topic "+c.topic)
	}
	c.logger.Debug("subscribed to control topic", "topic", c.topic)
	return nil
}

// DrainPending fetches and dispatches every pending message on the bus,
// non-blocking, until none remain. Messages on foreign topics or of a
// non-data kind are silently discarded. It returns true as soon as an exit
// command is seen; remaining messages are left unprocessed so the caller can
// proceed directly to shutdown.
func (c *Channel) DrainPending(ctx context.Context, sink Sink) bool {
	for {
		raw, err := c.bus.NextPending(ctx)
		if err != nil {
			c.logger.Warn("control bus fetch failed", "error", err)
			return false
		}
		if raw == nil {
			return false
		}
		if raw.Kind != KindData || raw.Topic != c.topic {
			continue
		}

		msg := Parse(raw.Payload)
		c.logger.Debug("control message received", "command", msg.Command, "params", msg.Params)
		if c.recorder != nil {
			c.recorder.RecordMessageReceived(c.worker)
		}

		switch {
		case msg.Command == cmdExit:
			sink.RequestExit()
			c.record(cmdExit, "ok")
			return true
		case msg.Command == cmdDelay && len(msg.Params) > 0:
			value, err := strconv.ParseFloat(msg.Params[0], 64)
			if err != nil {
				c.logger.Warn("wrong argument for delay received", "argument", msg.Params[0])
				c.record(cmdDelay, "invalid")
				continue
			}
			// SetDelay rejects negative values itself; nothing to escalate
			if err := sink.SetDelay(value); err != nil {
				c.record(cmdDelay, "rejected")
			} else {
				c.record(cmdDelay, "ok")
			}
		default:
			if c.execute(ctx, msg) {
				c.record(msg.Command, "ok")
			} else {
				c.logger.Warn("command can not be executed", "command", msg.Command)
				c.record(msg.Command, "failed")
			}
		}
	}
}

// record reports a dispatched command when instrumentation is enabled.
func (c *Channel) record(command, status string) {
	if c.recorder != nil {
		c.recorder.RecordCommandDispatched(c.worker, command, status)
	}
}

// execute runs the executor, absorbing panics so a faulty user hook cannot
// take down the loop.
func (c *Channel) execute(ctx context.Context, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("command executor panicked", "command", msg.Command, "panic", r)
			ok = false
		}
	}()
	return c.exec(ctx, msg.Command, msg.Params)
}
