package worker

import (
	"log/slog"

	"github.com/bond-anton/nts.service/control"
	"github.com/bond-anton/nts.service/metric"
	"github.com/bond-anton/nts.service/series"
)

// Option configures a Worker during construction.
type Option func(*Worker)

// WithDelay sets the initial loop delay in seconds. Negative values are
// ignored.
func WithDelay(seconds float64) Option {
	return func(w *Worker) {
		if seconds >= 0 {
			w.delay = seconds
		}
	}
}

// WithWorkerID sets the numeric worker identity used in log output.
func WithWorkerID(id int) Option {
	return func(w *Worker) {
		w.workerID = id
	}
}

// WithLogLevel sets the initial log level.
func WithLogLevel(level Level) Option {
	return func(w *Worker) {
		w.level.Store(int32(level))
		w.levelVar.Set(level.Slog())
	}
}

// WithLevelVar shares an externally owned slog.LevelVar so runtime level
// changes through SetLevel reach the handlers built on it.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(w *Worker) {
		if lv != nil {
			lv.Set(Level(w.level.Load()).Slog())
			w.levelVar = lv
		}
	}
}

// WithLogger sets the base logger. The worker attaches its identity
// attributes on top of it.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithControlChannel binds the remote control channel drained on every tick.
func WithControlChannel(ch *control.Channel) Option {
	return func(w *Worker) {
		w.controlCh = ch
	}
}

// WithStatusSink binds the sink receiving the worker's status projection.
func WithStatusSink(sink StatusSink) Option {
	return func(w *Worker) {
		w.status = sink
	}
}

// WithSeriesStore binds the time series store exposed to the job through
// Store.
func WithSeriesStore(store *series.Store) Option {
	return func(w *Worker) {
		w.store = store
	}
}

// WithMetrics binds the platform metrics collection.
func WithMetrics(m *metric.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithJob sets the periodic job executed once per tick.
func WithJob(job JobFunc) Option {
	return func(w *Worker) {
		w.job = job
	}
}

// WithCleanup sets the hook executed during the stop sequence.
func WithCleanup(cleanup CleanupFunc) Option {
	return func(w *Worker) {
		w.cleanup = cleanup
	}
}

// WithExitFunc replaces os.Exit as the final step of Stop. Tests use this
// to observe the exit code without terminating the process.
func WithExitFunc(exit func(code int)) Option {
	return func(w *Worker) {
		if exit != nil {
			w.exitFunc = exit
		}
	}
}
