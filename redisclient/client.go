// Package redisclient provides the Redis integration for worker services:
// the time series storage backend, the pub/sub control bus, the status
// projection, and the log stream tee.
package redisclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bond-anton/nts.service/errors"
	"github.com/bond-anton/nts.service/series"
)

// Client manages one Redis connection shared by the control bus, the series
// backend, the status projection, and the log stream.
type Client struct {
	addr     string
	password string
	db       int

	dialTimeout time.Duration
	pollTimeout time.Duration
	logStream   string
	logger      *slog.Logger

	rdb *redis.Client

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewClient creates an unconnected client for the given address.
func NewClient(addr string, opts ...Option) *Client {
	c := &Client{
		addr:        addr,
		dialTimeout: 5 * time.Second,
		pollTimeout: 10 * time.Millisecond,
		logStream:   "worker_logs",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the connection and verifies it with a ping.
func (c *Client) Connect(ctx context.Context) error {
	c.rdb = redis.NewClient(&redis.Options{
		Addr:        c.addr,
		Password:    c.password,
		DB:          c.db,
		DialTimeout: c.dialTimeout,
	})
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "ping "+c.addr)
	}
	c.logger.Info("connected to redis", "addr", c.addr, "db", c.db)
	return nil
}

// Close releases the subscription and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.pubsub != nil {
		_ = c.pubsub.Close()
		c.pubsub = nil
	}
	c.mu.Unlock()
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		return errors.Wrap(err, "Client", "Close", "close connection")
	}
	return nil
}

// aggregators maps series function names onto redis aggregator tokens.
var aggregators = map[string]redis.Aggregator{
	series.AggAverage: redis.Avg,
	series.AggStdDev:  redis.StdS,
}

// ready guards every command against use before Connect.
func (c *Client) ready(method string) error {
	if c.rdb == nil {
		return errors.WrapTransient(errors.ErrStoreUnavailable, "Client", method, "not connected")
	}
	return nil
}

// CreateSeries creates a time series key with retention and labels.
// An existing key maps to series.ErrAlreadyExists.
func (c *Client) CreateSeries(ctx context.Context, key string, retentionMs int64, labels map[string]string) error {
	if err := c.ready("CreateSeries"); err != nil {
		return err
	}
	opts := &redis.TSOptions{
		Retention: int(retentionMs),
		Labels:    labels,
	}
	if err := c.rdb.TSCreateWithArgs(ctx, key, opts).Err(); err != nil {
		if isAlreadyExists(err) {
			return series.ErrAlreadyExists
		}
		return errors.WrapTransient(err, "Client", "CreateSeries", "create "+key)
	}
	return nil
}

// CreateRule attaches an aggregation rule feeding destKey from sourceKey.
// An existing rule maps to series.ErrAlreadyExists.
func (c *Client) CreateRule(ctx context.Context, sourceKey, destKey, function string, bucketMs int64) error {
	if err := c.ready("CreateRule"); err != nil {
		return err
	}
	agg, ok := aggregators[function]
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidData, "Client", "CreateRule",
			"unknown aggregation function "+function)
	}
	if err := c.rdb.TSCreateRule(ctx, sourceKey, destKey, agg, int(bucketMs)).Err(); err != nil {
		if isAlreadyExists(err) {
			return series.ErrAlreadyExists
		}
		return errors.WrapTransient(err, "Client", "CreateRule", "link "+sourceKey+" -> "+destKey)
	}
	return nil
}

// DeleteSeries removes the series key and its data.
func (c *Client) DeleteSeries(ctx context.Context, key string) error {
	if err := c.ready("DeleteSeries"); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return errors.WrapTransient(err, "Client", "DeleteSeries", "delete "+key)
	}
	return nil
}

// Add appends one sample. Labels are ignored here; the series carries them
// from creation.
func (c *Client) Add(ctx context.Context, key string, timestampMs int64, value float64, _ map[string]string) error {
	if err := c.ready("Add"); err != nil {
		return err
	}
	if err := c.rdb.TSAdd(ctx, key, timestampMs, value).Err(); err != nil {
		return errors.WrapTransient(err, "Client", "Add", "append to "+key)
	}
	return nil
}

// QueryIndex returns the keys matching the given label filters.
func (c *Client) QueryIndex(ctx context.Context, filters []string) ([]string, error) {
	if err := c.ready("QueryIndex"); err != nil {
		return nil, err
	}
	keys, err := c.rdb.TSQueryIndex(ctx, filters).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "QueryIndex", "query index")
	}
	return keys, nil
}

// Rules reads the aggregation rules attached to a source series out of the
// series info reply.
func (c *Client) Rules(ctx context.Context, key string) ([]series.Rule, error) {
	if err := c.ready("Rules"); err != nil {
		return nil, err
	}
	info, err := c.rdb.TSInfo(ctx, key).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Rules", "info "+key)
	}
	return parseRules(info["rules"]), nil
}

// parseRules decodes the "rules" entry of a TS.INFO reply. The reply shape
// differs between protocol versions: a list of [dest, bucket, agg] triples,
// or a map keyed by dest.
func parseRules(raw any) []series.Rule {
	var rules []series.Rule
	switch v := raw.(type) {
	case []any:
		for _, entry := range v {
			fields, ok := entry.([]any)
			if !ok || len(fields) < 3 {
				continue
			}
			rules = append(rules, series.Rule{
				DestKey:  asString(fields[0]),
				BucketMs: asInt64(fields[1]),
				Function: strings.ToLower(asString(fields[2])),
			})
		}
	case map[any]any:
		for dest, entry := range v {
			fields, ok := entry.([]any)
			if !ok || len(fields) < 2 {
				continue
			}
			rules = append(rules, series.Rule{
				DestKey:  asString(dest),
				BucketMs: asInt64(fields[0]),
				Function: strings.ToLower(asString(fields[1])),
			})
		}
	case map[string]any:
		for dest, entry := range v {
			fields, ok := entry.([]any)
			if !ok || len(fields) < 2 {
				continue
			}
			rules = append(rules, series.Rule{
				DestKey:  dest,
				BucketMs: asInt64(fields[0]),
				Function: strings.ToLower(asString(fields[1])),
			})
		}
	}
	return rules
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// isAlreadyExists classifies the duplicate-key and duplicate-rule response
// errors RedisTimeSeries reports as plain strings.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, series.ErrAlreadyExists) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "rule already exists") ||
		strings.Contains(msg, "destination key already has")
}
