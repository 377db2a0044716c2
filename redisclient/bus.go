package redisclient

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/bond-anton/nts.service/control"
	"github.com/bond-anton/nts.service/errors"
)

// Subscribe binds the client's pub/sub connection to one control topic.
// Re-subscribing replaces the previous subscription.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	if err := c.ready("Subscribe"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubsub != nil {
		_ = c.pubsub.Close()
	}
	c.pubsub = c.rdb.Subscribe(ctx, topic)
	// Force the subscription round trip now so failures surface here
	// instead of on the first poll
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		c.pubsub = nil
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe "+topic)
	}
	return nil
}

// NextPending polls the subscription without blocking beyond the configured
// poll timeout. It returns nil with no error when nothing is pending.
func (c *Client) NextPending(ctx context.Context) (*control.BusMessage, error) {
	c.mu.Lock()
	pubsub := c.pubsub
	c.mu.Unlock()
	if pubsub == nil {
		return nil, errors.WrapInvalid(errors.ErrSubscriptionFailed, "Client", "NextPending", "not subscribed")
	}

	raw, err := pubsub.ReceiveTimeout(ctx, c.pollTimeout)
	if err != nil {
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Client", "NextPending", "receive")
	}

	switch msg := raw.(type) {
	case *redis.Message:
		return &control.BusMessage{
			Kind:    control.KindData,
			Topic:   msg.Channel,
			Payload: []byte(msg.Payload),
		}, nil
	case *redis.Subscription:
		return &control.BusMessage{
			Kind:  control.KindControl,
			Topic: msg.Channel,
		}, nil
	default:
		// Pongs and anything else carry no command
		return &control.BusMessage{Kind: control.KindControl}, nil
	}
}

// PublishStatus projects the worker status fields into a hash under the
// service name.
func (c *Client) PublishStatus(ctx context.Context, service string, fields map[string]string) error {
	if err := c.ready("PublishStatus"); err != nil {
		return err
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	if err := c.rdb.HSet(ctx, service, values).Err(); err != nil {
		return errors.WrapTransient(err, "Client", "PublishStatus", "hset "+service)
	}
	return nil
}
