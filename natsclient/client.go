// Package natsclient provides the NATS transport for the worker control
// channel.
package natsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bond-anton/nts.service/control"
	"github.com/bond-anton/nts.service/errors"
)

// Bus manages one NATS connection with a single synchronous subscription,
// polled non-blocking by the control channel.
type Bus struct {
	url string

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	pollTimeout   time.Duration
	credentials   string
	clientName    string
	logger        *slog.Logger

	conn *nats.Conn

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewBus creates an unconnected bus for the given server URL.
func NewBus(url string, opts ...Option) *Bus {
	b := &Bus{
		url:           url,
		maxReconnects: 10,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		pollTimeout:   10 * time.Millisecond,
		clientName:    "nts-worker",
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect establishes the NATS connection.
func (b *Bus) Connect(_ context.Context) error {
	natsOpts := []nats.Option{
		nats.Name(b.clientName),
		nats.MaxReconnects(b.maxReconnects),
		nats.ReconnectWait(b.reconnectWait),
		nats.Timeout(b.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			b.logger.Info("nats reconnected", "url", conn.ConnectedUrl())
		}),
	}
	if b.credentials != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(b.credentials))
	}

	conn, err := nats.Connect(b.url, natsOpts...)
	if err != nil {
		return errors.WrapTransient(err, "Bus", "Connect", "connect "+b.url)
	}
	b.conn = conn
	b.logger.Info("connected to nats", "url", conn.ConnectedUrl())
	return nil
}

// Subscribe binds a synchronous subscription to one control topic.
// Re-subscribing replaces the previous subscription.
func (b *Bus) Subscribe(_ context.Context, topic string) error {
	if b.conn == nil {
		return errors.WrapInvalid(errors.ErrNoConnection, "Bus", "Subscribe", "not connected")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	sub, err := b.conn.SubscribeSync(topic)
	if err != nil {
		return errors.WrapTransient(err, "Bus", "Subscribe", "subscribe "+topic)
	}
	b.sub = sub
	return nil
}

// NextPending polls the subscription without blocking beyond the configured
// poll timeout. It returns nil with no error when nothing is pending.
func (b *Bus) NextPending(_ context.Context) (*control.BusMessage, error) {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	if sub == nil {
		return nil, errors.WrapInvalid(errors.ErrSubscriptionFailed, "Bus", "NextPending", "not subscribed")
	}

	msg, err := sub.NextMsg(b.pollTimeout)
	if err != nil {
		if stderrors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Bus", "NextPending", "next message")
	}
	return &control.BusMessage{
		Kind:    control.KindData,
		Topic:   msg.Subject,
		Payload: msg.Data,
	}, nil
}

// Close drains the subscription and closes the connection.
func (b *Bus) Close(_ context.Context) error {
	b.mu.Lock()
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
		b.sub = nil
	}
	b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return errors.Wrap(err, "Bus", "Close", "drain connection")
	}
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (b *Bus) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}
