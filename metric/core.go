package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the platform-level worker metrics (not job-specific)
type Metrics struct {
	// Worker metrics
	WorkerState  *prometheus.GaugeVec
	TicksTotal   *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	DelaySeconds *prometheus.GaugeVec
	ErrorsTotal  *prometheus.CounterVec

	// Control channel metrics
	MessagesReceived   *prometheus.CounterVec
	CommandsDispatched *prometheus.CounterVec

	// Series store metrics
	SeriesChannels *prometheus.GaugeVec
	SamplesWritten *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		WorkerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nts",
				Subsystem: "worker",
				Name:      "state",
				Help:      "Worker lifecycle state (0=created, 1=initialized, 2=running, 3=stopping, 4=stopped)",
			},
			[]string{"worker"},
		),

		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nts",
				Subsystem: "worker",
				Name:      "ticks_total",
				Help:      "Total number of completed loop ticks",
			},
			[]string{"worker"},
		),

		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nts",
				Subsystem: "worker",
				Name:      "job_duration_seconds",
				Help:      "Periodic job execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"worker"},
		),

		DelaySeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nts",
				Subsystem: "worker",
				Name:      "delay_seconds",
				Help:      "Current loop delay in seconds",
			},
			[]string{"worker"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nts",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"worker", "type"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nts",
				Subsystem: "control",
				Name:      "messages_received_total",
				Help:      "Total number of control messages received",
			},
			[]string{"worker"},
		),

		CommandsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nts",
				Subsystem: "control",
				Name:      "commands_dispatched_total",
				Help:      "Total number of commands dispatched by outcome",
			},
			[]string{"worker", "command", "status"},
		),

		SeriesChannels: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nts",
				Subsystem: "series",
				Name:      "channels",
				Help:      "Number of source series channels in the cached index",
			},
			[]string{"worker"},
		),

		SamplesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nts",
				Subsystem: "series",
				Name:      "samples_written_total",
				Help:      "Total number of samples appended to source series",
			},
			[]string{"worker", "label"},
		),
	}
}

// RecordWorkerState updates the worker lifecycle state metric
func (c *Metrics) RecordWorkerState(worker string, state int) {
	c.WorkerState.WithLabelValues(worker).Set(float64(state))
}

// RecordTick increments the completed tick counter
func (c *Metrics) RecordTick(worker string) {
	c.TicksTotal.WithLabelValues(worker).Inc()
}

// RecordJobDuration records one periodic job execution
func (c *Metrics) RecordJobDuration(worker string, duration time.Duration) {
	c.JobDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordDelay updates the current loop delay gauge
func (c *Metrics) RecordDelay(worker string, seconds float64) {
	c.DelaySeconds.WithLabelValues(worker).Set(seconds)
}

// RecordError increments the error counter
func (c *Metrics) RecordError(worker, errorType string) {
	c.ErrorsTotal.WithLabelValues(worker, errorType).Inc()
}

// RecordMessageReceived increments the received control message counter
func (c *Metrics) RecordMessageReceived(worker string) {
	c.MessagesReceived.WithLabelValues(worker).Inc()
}

// RecordCommandDispatched increments the dispatched command counter
func (c *Metrics) RecordCommandDispatched(worker, command, status string) {
	c.CommandsDispatched.WithLabelValues(worker, command, status).Inc()
}

// RecordSeriesChannels updates the channel count gauge
func (c *Metrics) RecordSeriesChannels(worker string, count int) {
	c.SeriesChannels.WithLabelValues(worker).Set(float64(count))
}

// RecordSampleWritten increments the written sample counter
func (c *Metrics) RecordSampleWritten(worker, label string) {
	c.SamplesWritten.WithLabelValues(worker, label).Inc()
}
