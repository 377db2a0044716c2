package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry.CoreMetrics())
	require.NotNil(t, registry.PrometheusRegistry())
}

func TestMetricsRegistry_RegisterCollector(t *testing.T) {
	registry := NewMetricsRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_jobs_total",
		Help: "test counter",
	})

	t.Run("registers a new collector", func(t *testing.T) {
		require.NoError(t, registry.RegisterCollector("worker1", "jobs", counter))
	})

	t.Run("duplicate key rejected", func(t *testing.T) {
		err := registry.RegisterCollector("worker1", "jobs", counter)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("unregister allows re-registration", func(t *testing.T) {
		assert.True(t, registry.Unregister("worker1", "jobs"))
		assert.False(t, registry.Unregister("worker1", "jobs"))
		require.NoError(t, registry.RegisterCollector("worker1", "jobs", counter))
	})
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordWorkerState("w", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkerState.WithLabelValues("w")))

	m.RecordTick("w")
	m.RecordTick("w")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("w")))

	m.RecordDelay("w", 1.2)
	assert.Equal(t, 1.2, testutil.ToFloat64(m.DelaySeconds.WithLabelValues("w")))

	m.RecordCommandDispatched("w", "exit", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsDispatched.WithLabelValues("w", "exit", "ok")))

	m.RecordSeriesChannels("w", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SeriesChannels.WithLabelValues("w")))
}
