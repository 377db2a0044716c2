// Package worker provides the lifecycle state machine for background worker
// services: a cooperative poll loop driven by remote control commands and
// stopped cleanly on OS termination signals.
package worker

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bond-anton/nts.service/control"
	"github.com/bond-anton/nts.service/errors"
	"github.com/bond-anton/nts.service/metric"
	"github.com/bond-anton/nts.service/series"
)

// StatusSink receives the worker's status projection: key-value pairs
// published under the service name on initialize and stop. This is a
// one-way projection; failures are logged and never propagated.
type StatusSink interface {
	PublishStatus(ctx context.Context, service string, fields map[string]string) error
}

// JobFunc is the periodic job executed once per loop tick.
type JobFunc func(ctx context.Context) error

// CleanupFunc runs once during the stop sequence, before process exit.
type CleanupFunc func(ctx context.Context) error

// Worker is a background service with a CREATED -> INITIALIZED -> RUNNING ->
// STOPPING -> STOPPED lifecycle. Each tick of the running loop drains all
// pending control messages, runs the periodic job, and sleeps for the
// current delay. Termination signals only set a pending-stop flag; all
// teardown happens at the next safe point of the loop.
type Worker struct {
	name     string
	version  string
	workerID int

	state atomic.Int32 // State
	exit  atomic.Bool

	mu    sync.RWMutex
	delay float64 // seconds

	level    atomic.Int32 // Level
	levelVar *slog.LevelVar
	logger   *slog.Logger

	controlCh *control.Channel
	status    StatusSink
	store     *series.Store
	metrics   *metric.Metrics

	job     JobFunc
	cleanup CleanupFunc

	signals     chan os.Signal
	signalsOnce sync.Once
	stopOnce    sync.Once
	exitFunc    func(code int)

	lastTickMs atomic.Int64
}

// New creates a worker in the CREATED state. The zero configuration runs a
// loop with a 5 second delay, DEBUG logging, no control channel, no status
// sink, and a job that does nothing.
func New(name, version string, opts ...Option) *Worker {
	w := &Worker{
		name:     name,
		version:  version,
		workerID: 1,
		delay:    5,
		levelVar: new(slog.LevelVar),
		logger:   slog.Default(),
		exitFunc: os.Exit,
		signals:  make(chan os.Signal, 1),
	}
	w.level.Store(int32(LevelDebug))
	w.levelVar.Set(LevelDebug.Slog())

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.With("worker", w.WorkerName(), "version", w.version)
	w.lastTickMs.Store(time.Now().UnixMilli())
	return w
}

// Name returns the service name.
func (w *Worker) Name() string {
	return w.name
}

// Version returns the service version string.
func (w *Worker) Version() string {
	return w.version
}

// WorkerName returns the "{name}:{worker_id}" identity used in log output.
func (w *Worker) WorkerName() string {
	return w.name + ":" + strconv.Itoa(w.workerID)
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Store returns the worker's series store, or nil when none is configured.
func (w *Worker) Store() *series.Store {
	return w.store
}

// LastTickMs returns the start timestamp of the most recently completed
// tick, in milliseconds.
func (w *Worker) LastTickMs() int64 {
	return w.lastTickMs.Load()
}

// Delay returns the current loop delay in seconds.
func (w *Worker) Delay() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.delay
}

// SetDelay updates the loop delay. Negative values are rejected with no
// state change; valid values take effect on the next sleep.
func (w *Worker) SetDelay(seconds float64) error {
	if seconds < 0 {
		w.logger.Error("delay must be >= 0", "delay", seconds)
		return errors.WrapInvalid(errors.ErrInvalidData, "Worker", "SetDelay", "validate delay")
	}
	w.mu.Lock()
	w.delay = seconds
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.RecordDelay(w.name, seconds)
	}
	w.logger.Debug("delay changed", "delay", seconds)
	return nil
}

// Level returns the current log level.
func (w *Worker) Level() Level {
	return Level(w.level.Load())
}

// SetLevel updates the log level at runtime.
func (w *Worker) SetLevel(level Level) {
	w.level.Store(int32(level))
	w.levelVar.Set(level.Slog())
	w.logger.Debug("logging level set", "level", level.String())
}

// LevelVar exposes the slog.LevelVar driving handler filtering, so callers
// can wire it into their handlers.
func (w *Worker) LevelVar() *slog.LevelVar {
	return w.levelVar
}

// RequestExit marks the loop for shutdown at the next safe point. Safe to
// call from any goroutine.
func (w *Worker) RequestExit() {
	w.exit.Store(true)
}

// Initialize transitions CREATED -> INITIALIZED: binds the control channel,
// installs signal notification, and publishes the running status. Calling
// it again re-publishes the status and returns nil.
func (w *Worker) Initialize(ctx context.Context) error {
	if w.state.CompareAndSwap(int32(StateCreated), int32(StateInitialized)) {
		if w.controlCh != nil {
			if err := w.controlCh.Subscribe(ctx); err != nil {
				return errors.Wrap(err, "Worker", "Initialize", "subscribe control channel")
			}
		}
		// Signal delivery only flips a flag; teardown happens in the loop
		w.signalsOnce.Do(func() {
			signal.Notify(w.signals, syscall.SIGTERM, syscall.SIGINT)
		})
		w.setStateMetric()
		w.logger.Info("worker initialized")
	}
	w.publishStatus(ctx, true)
	return nil
}

// Run initializes the worker if needed and executes the main loop until an
// exit condition is observed, then performs the stop sequence. On a normal
// stop the process terminates with exit code 0 through the worker's exit
// function.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Initialize(ctx); err != nil {
		return err
	}
	if !w.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning)) {
		return errors.WrapInvalid(errors.ErrAlreadyRunning, "Worker", "Run", "enter running state")
	}
	w.setStateMetric()
	w.logger.Info("worker running", "delay", w.Delay())

	for w.State() == StateRunning {
		tickStart := time.Now()

		w.drainSignals()
		if ctx.Err() != nil {
			w.exit.Store(true)
		}
		if w.controlCh != nil && !w.exit.Load() {
			w.controlCh.DrainPending(ctx, w)
		}
		if w.exit.Load() {
			break
		}

		w.runJob(ctx)
		w.sleep(ctx)

		w.lastTickMs.Store(tickStart.UnixMilli())
		if w.metrics != nil {
			w.metrics.RecordTick(w.name)
		}
	}

	w.Stop(ctx)
	return nil
}

// Stop performs the stop sequence exactly once: STOPPING -> STOPPED,
// publishes the stopped status, runs the cleanup hook, and terminates the
// process with exit code 0. Later calls are no-ops.
func (w *Worker) Stop(ctx context.Context) {
	w.stopOnce.Do(func() {
		w.state.Store(int32(StateStopping))
		w.setStateMetric()

		w.publishStatus(ctx, false)
		w.logger.Info("cleaning up")
		if w.cleanup != nil {
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error("cleanup failed", "error", err)
			}
		}
		signal.Stop(w.signals)

		w.state.Store(int32(StateStopped))
		w.setStateMetric()
		w.logger.Info("worker stopped")
		w.exitFunc(0)
	})
}

// drainSignals consumes any pending termination signal without blocking and
// converts it into the exit flag.
func (w *Worker) drainSignals() {
	select {
	case sig := <-w.signals:
		w.logger.Warn("termination signal received", "signal", sig.String())
		w.exit.Store(true)
	default:
	}
}

// runJob executes the periodic job hook. Job errors are absorbed into log
// output; no error condition here stops the loop.
func (w *Worker) runJob(ctx context.Context) {
	if w.job == nil {
		return
	}
	start := time.Now()
	if err := w.job(ctx); err != nil {
		w.logger.Error("job failed", "error", err)
		if w.metrics != nil {
			w.metrics.RecordError(w.name, "job")
		}
	}
	if w.metrics != nil {
		w.metrics.RecordJobDuration(w.name, time.Since(start))
	}
}

// sleep waits for the current delay. Context cancellation wakes the sleep
// early; the exit condition it implies is observed at the next tick.
func (w *Worker) sleep(ctx context.Context) {
	delay := time.Duration(w.Delay() * float64(time.Second))
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// publishStatus projects the worker status under its service name. Failures
// are transport errors: logged, never propagated, never fatal.
func (w *Worker) publishStatus(ctx context.Context, running bool) {
	if w.status == nil {
		return
	}
	runningValue := "0"
	if running {
		runningValue = "1"
	}
	fields := map[string]string{
		"version":       w.version,
		"delay":         strconv.FormatFloat(w.Delay(), 'g', -1, 64),
		"logging_level": w.Level().String(),
		"running":       runningValue,
	}
	if err := w.status.PublishStatus(ctx, w.name, fields); err != nil {
		w.logger.Warn("status publish failed", "error", err)
		if w.metrics != nil {
			w.metrics.RecordError(w.name, "status")
		}
	}
}

func (w *Worker) setStateMetric() {
	if w.metrics != nil {
		w.metrics.RecordWorkerState(w.name, int(w.State()))
	}
}
