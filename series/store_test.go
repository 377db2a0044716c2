package series

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory series store with label index and rules.
type fakeBackend struct {
	series  map[string]fakeSeries
	rules   map[string][]Rule // source key -> rules
	ops     []string          // mutation order, for delete-ordering checks
	failOn  string            // key whose operations return an error
	failErr error
}

type fakeSeries struct {
	retentionMs int64
	labels      map[string]string
	samples     []fakeSample
}

type fakeSample struct {
	timestampMs int64
	value       float64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		series: make(map[string]fakeSeries),
		rules:  make(map[string][]Rule),
	}
}

func (b *fakeBackend) CreateSeries(_ context.Context, key string, retentionMs int64, labels map[string]string) error {
	if key == b.failOn {
		return b.failErr
	}
	if _, exists := b.series[key]; exists {
		return fmt.Errorf("TSDB: %w", ErrAlreadyExists)
	}
	b.series[key] = fakeSeries{retentionMs: retentionMs, labels: labels}
	b.ops = append(b.ops, "create:"+key)
	return nil
}

func (b *fakeBackend) CreateRule(_ context.Context, sourceKey, destKey, function string, bucketMs int64) error {
	for _, r := range b.rules[sourceKey] {
		if r.DestKey == destKey {
			return fmt.Errorf("rule: %w", ErrAlreadyExists)
		}
	}
	b.rules[sourceKey] = append(b.rules[sourceKey], Rule{DestKey: destKey, Function: function, BucketMs: bucketMs})
	return nil
}

func (b *fakeBackend) DeleteSeries(_ context.Context, key string) error {
	if _, exists := b.series[key]; !exists {
		return errors.New("no such key")
	}
	delete(b.series, key)
	b.ops = append(b.ops, "delete:"+key)
	// deleting a destination drops its rule, like a real store does
	for src, rules := range b.rules {
		b.rules[src] = slices.DeleteFunc(rules, func(r Rule) bool { return r.DestKey == key })
	}
	delete(b.rules, key)
	return nil
}

func (b *fakeBackend) Add(_ context.Context, key string, timestampMs int64, value float64, labels map[string]string) error {
	s, exists := b.series[key]
	if !exists {
		s = fakeSeries{labels: labels}
	}
	s.samples = append(s.samples, fakeSample{timestampMs: timestampMs, value: value})
	b.series[key] = s
	return nil
}

func (b *fakeBackend) QueryIndex(_ context.Context, filters []string) ([]string, error) {
	var keys []string
	for key, s := range b.series {
		matched := true
		for _, f := range filters {
			name, value, ok := strings.Cut(f, "=")
			if !ok || s.labels[name] != value {
				matched = false
				break
			}
		}
		if matched {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (b *fakeBackend) Rules(_ context.Context, key string) ([]Rule, error) {
	return slices.Clone(b.rules[key]), nil
}

func newTestStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	return NewStore("TestRedisWorker", backend), backend
}

func TestStore_CreateChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("creates source series with retention and labels", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "temperature", 2000, nil))

		s := backend.series["temperature"]
		assert.Equal(t, int64(2_000_000), s.retentionMs)
		assert.Equal(t, map[string]string{"name": "TestRedisWorker", "type": "src"}, s.labels)
		assert.Equal(t, []string{"temperature"}, store.Labels())
	})

	t.Run("negative retention floored at zero", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", -5, nil))
		assert.Equal(t, int64(0), backend.series["ch"].retentionMs)
	})

	t.Run("create is idempotent", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		assert.Equal(t, []string{"ch"}, store.Labels())
	})

	t.Run("two periods yield four rules", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 2000, []int{1, 60}))

		rules, err := backend.Rules(ctx, "ch")
		require.NoError(t, err)
		require.Len(t, rules, 4)

		want := []Rule{
			{DestKey: "ch_avg_1s", Function: "avg", BucketMs: 1000},
			{DestKey: "ch_std.s_1s", Function: "std.s", BucketMs: 1000},
			{DestKey: "ch_avg_60s", Function: "avg", BucketMs: 60000},
			{DestKey: "ch_std.s_60s", Function: "std.s", BucketMs: 60000},
		}
		if diff := cmp.Diff(want, rules); diff != "" {
			t.Errorf("rules mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("genuine backend failure propagates", func(t *testing.T) {
		backend := newFakeBackend()
		backend.failOn = "bad"
		backend.failErr = errors.New("store exploded")
		store := NewStore("w", backend)

		err := store.CreateChannel(ctx, "bad", 10, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Store.CreateChannel")
	})
}

func TestStore_DeleteChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown label is a no-op", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "keep", 100, nil))

		require.NoError(t, store.DeleteChannel(ctx, "ghost"))
		assert.Equal(t, []string{"keep"}, store.Labels())
		assert.Contains(t, backend.series, "keep")
	})

	t.Run("derived series removed before the source", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 2000, []int{1}))
		backend.ops = nil

		require.NoError(t, store.DeleteChannel(ctx, "ch"))

		assert.Empty(t, store.Labels())
		assert.NotContains(t, backend.series, "ch")
		assert.NotContains(t, backend.series, "ch_avg_1s")
		assert.NotContains(t, backend.series, "ch_std.s_1s")
		// the source delete must come last
		require.NotEmpty(t, backend.ops)
		assert.Equal(t, "delete:ch", backend.ops[len(backend.ops)-1])
	})
}

func TestStore_AddAggregation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown label is a no-op", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.AddAggregation(ctx, "ghost", 10, 100))
		assert.Empty(t, backend.series)
	})

	t.Run("derived retention scales with the period", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		require.NoError(t, store.AddAggregation(ctx, "ch", 60, 100))

		derived := backend.series["ch_avg_60s"]
		assert.Equal(t, int64(100_000*60), derived.retentionMs)
		assert.Equal(t, map[string]string{"name": "TestRedisWorker", "type": "avg"}, derived.labels)

		stddev := backend.series["ch_std.s_60s"]
		assert.Equal(t, int64(100_000*60), stddev.retentionMs)
		assert.Equal(t, map[string]string{"name": "TestRedisWorker", "type": "std.s"}, stddev.labels)
	})

	t.Run("sub-second period keeps at least base retention", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		require.NoError(t, store.AddAggregation(ctx, "ch", 0, 100))

		assert.Equal(t, int64(100_000), backend.series["ch_avg_0s"].retentionMs)
	})

	t.Run("repeated wiring is idempotent", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, []int{10}))
		require.NoError(t, store.AddAggregation(ctx, "ch", 10, 100))

		rules, err := backend.Rules(ctx, "ch")
		require.NoError(t, err)
		assert.Len(t, rules, 2)
	})
}

func TestStore_DeleteAggregation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown label is a no-op", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.DeleteAggregation(ctx, "ghost", 60))
	})

	t.Run("removes both functions for the period", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 2000, []int{1, 60}))

		require.NoError(t, store.DeleteAggregation(ctx, "ch", 60))

		rules, err := backend.Rules(ctx, "ch")
		require.NoError(t, err)
		assert.Len(t, rules, 2)
		assert.NotContains(t, backend.series, "ch_avg_60s")
		assert.NotContains(t, backend.series, "ch_std.s_60s")
		assert.Contains(t, backend.series, "ch_avg_1s")
	})

	t.Run("missing derived series tolerated", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		// no aggregation was ever wired for this period
		require.NoError(t, store.DeleteAggregation(ctx, "ch", 30))
	})
}

func TestStore_PutData(t *testing.T) {
	ctx := context.Background()

	t.Run("appends with explicit timestamp", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		require.NoError(t, store.PutDataAt(ctx, "ch", 3.14, 1700000000000))

		samples := backend.series["ch"].samples
		require.Len(t, samples, 1)
		assert.Equal(t, int64(1700000000000), samples[0].timestampMs)
		assert.Equal(t, 3.14, samples[0].value)
	})

	t.Run("appends with current timestamp", func(t *testing.T) {
		store, backend := newTestStore(t)
		require.NoError(t, store.CreateChannel(ctx, "ch", 100, nil))
		require.NoError(t, store.PutData(ctx, "ch", 1.5))

		samples := backend.series["ch"].samples
		require.Len(t, samples, 1)
		assert.Positive(t, samples[0].timestampMs)
	})
}

func TestStore_RefreshIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("only source series of this service are indexed", func(t *testing.T) {
		backend := newFakeBackend()
		store := NewStore("mine", backend)

		require.NoError(t, backend.CreateSeries(ctx, "own", 0, map[string]string{"name": "mine", "type": "src"}))
		require.NoError(t, backend.CreateSeries(ctx, "foreign", 0, map[string]string{"name": "other", "type": "src"}))
		require.NoError(t, backend.CreateSeries(ctx, "derived", 0, map[string]string{"name": "mine", "type": "avg"}))

		require.NoError(t, store.RefreshIndex(ctx))
		assert.Equal(t, []string{"own"}, store.Labels())
	})
}

func TestAggregationKey(t *testing.T) {
	assert.Equal(t, "load_avg_60s", AggregationKey("load", AggAverage, 60))
	assert.Equal(t, "load_std.s_30s", AggregationKey("load", AggStdDev, 30))
}
