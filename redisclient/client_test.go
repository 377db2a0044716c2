package redisclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bond-anton/nts.service/errors"
	"github.com/bond-anton/nts.service/series"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []series.Rule
	}{
		{
			name: "list reply",
			raw: []any{
				[]any{"temp_avg_60s", int64(60000), "AVG"},
				[]any{"temp_std.s_60s", int64(60000), "STD.S"},
			},
			want: []series.Rule{
				{DestKey: "temp_avg_60s", BucketMs: 60000, Function: "avg"},
				{DestKey: "temp_std.s_60s", BucketMs: 60000, Function: "std.s"},
			},
		},
		{
			name: "map reply",
			raw: map[string]any{
				"temp_avg_60s": []any{int64(60000), "AVG", int64(0)},
			},
			want: []series.Rule{
				{DestKey: "temp_avg_60s", BucketMs: 60000, Function: "avg"},
			},
		},
		{
			name: "malformed entries skipped",
			raw: []any{
				"not a rule",
				[]any{"too_short"},
				[]any{"ok_avg_10s", int64(10000), "AVG"},
			},
			want: []series.Rule{
				{DestKey: "ok_avg_10s", BucketMs: 10000, Function: "avg"},
			},
		},
		{
			name: "nil reply",
			raw:  nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRules(tt.raw)
			sort := cmpopts.SortSlices(func(a, b series.Rule) bool { return a.DestKey < b.DestKey })
			if diff := cmp.Diff(tt.want, got, sort); diff != "" {
				t.Errorf("parseRules() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsAlreadyExists(t *testing.T) {
	assert.False(t, isAlreadyExists(nil))
	assert.False(t, isAlreadyExists(stderrors.New("ERR TSDB: the key does not exist")))
	assert.True(t, isAlreadyExists(stderrors.New("ERR TSDB: key already exists")))
	assert.True(t, isAlreadyExists(stderrors.New("ERR TSDB: the destination key already has a src rule")))
	assert.True(t, isAlreadyExists(series.ErrAlreadyExists))
}

func TestAggregatorMapping(t *testing.T) {
	// Every function the store creates must have a redis aggregator
	for _, fn := range []string{series.AggAverage, series.AggStdDev} {
		if _, ok := aggregators[fn]; !ok {
			t.Errorf("no aggregator mapped for %q", fn)
		}
	}
}

func TestCommandsRequireConnection(t *testing.T) {
	ctx := context.Background()
	c := NewClient("localhost:6379")

	checks := map[string]func() error{
		"CreateSeries": func() error { return c.CreateSeries(ctx, "k", 1000, nil) },
		"CreateRule":   func() error { return c.CreateRule(ctx, "k", "k_avg_60s", series.AggAverage, 60000) },
		"DeleteSeries": func() error { return c.DeleteSeries(ctx, "k") },
		"Add":          func() error { return c.Add(ctx, "k", 1, 1.0, nil) },
		"QueryIndex": func() error {
			_, err := c.QueryIndex(ctx, []string{"name=x"})
			return err
		},
		"Rules": func() error {
			_, err := c.Rules(ctx, "k")
			return err
		},
		"Subscribe":     func() error { return c.Subscribe(ctx, "x") },
		"PublishStatus": func() error { return c.PublishStatus(ctx, "x", nil) },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrStoreUnavailable))
			assert.True(t, errors.IsTransient(err))
		})
	}
}

func TestStreamHandlerEnabled(t *testing.T) {
	h := NewStreamHandler(NewClient("localhost:6379"), "svc:1", slog.LevelWarn)

	assert.False(t, h.Enabled(nil, slog.LevelDebug))
	assert.False(t, h.Enabled(nil, slog.LevelInfo))
	assert.True(t, h.Enabled(nil, slog.LevelWarn))
	assert.True(t, h.Enabled(nil, slog.LevelError))
}

func TestStreamHandlerWithAttrsIsolated(t *testing.T) {
	base := NewStreamHandler(NewClient("localhost:6379"), "svc:1", slog.LevelDebug)
	derived := base.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*StreamHandler)

	assert.Empty(t, base.attrs)
	assert.Len(t, derived.attrs, 1)

	grouped := derived.WithGroup("job").(*StreamHandler)
	assert.Equal(t, "job", grouped.group)
	assert.Empty(t, derived.group)
}
