package series

import (
	"context"
	"errors"
)

// ErrAlreadyExists is the distinguishable, ignorable condition a Backend
// must return (possibly wrapped) when asked to create a series or rule that
// is already present. The store treats creation as "ensure exists".
var ErrAlreadyExists = errors.New("series already exists")

// Label keys and values attached to every series owned by a store.
const (
	// LabelService keys the owning service name
	LabelService = "name"
	// LabelType keys the series type: "src" or the aggregation function
	LabelType = "type"
	// TypeSource marks a primary, directly written series
	TypeSource = "src"
)

// Aggregation functions maintained for every aggregated channel.
const (
	// AggAverage is the bucket average
	AggAverage = "avg"
	// AggStdDev is the sample standard deviation over the bucket
	AggStdDev = "std.s"
)

// aggFunctions lists the functions wired for every aggregation period, in
// creation order.
var aggFunctions = [...]string{AggAverage, AggStdDev}

// Rule describes one aggregation rule attached to a source series.
type Rule struct {
	// DestKey is the derived series fed by this rule
	DestKey string
	// Function is the aggregation function name
	Function string
	// BucketMs is the aggregation bucket size in milliseconds
	BucketMs int64
}

// Backend is the external series-store capability the Store is layered on:
// an ordered append-only numeric series store with a subscribable label
// index and derivable aggregation rules. Implementations must signal
// "already exists" with ErrAlreadyExists so creation stays idempotent.
type Backend interface {
	// CreateSeries creates a named numeric series with the given retention
	// in milliseconds and attached string labels
	CreateSeries(ctx context.Context, key string, retentionMs int64, labels map[string]string) error
	// CreateRule links a source series to a derived series through an
	// aggregation function applied over fixed buckets
	CreateRule(ctx context.Context, sourceKey, destKey, function string, bucketMs int64) error
	// DeleteSeries removes a series and its data
	DeleteSeries(ctx context.Context, key string) error
	// Add appends one timestamped sample to a series
	Add(ctx context.Context, key string, timestampMs int64, value float64, labels map[string]string) error
	// QueryIndex returns the keys of all series matching the given
	// label-equality filters (e.g. "name=worker1")
	QueryIndex(ctx context.Context, filters []string) ([]string, error)
	// Rules returns the aggregation rules attached to a source series
	Rules(ctx context.Context, key string) ([]Rule, error)
}
