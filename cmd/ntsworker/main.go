// Package main implements the entry point for the nts worker daemon: a
// background service driven by a remote control channel, projecting its
// status and time series data into Redis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/bond-anton/nts.service/config"
	"github.com/bond-anton/nts.service/control"
	"github.com/bond-anton/nts.service/metric"
	"github.com/bond-anton/nts.service/natsclient"
	"github.com/bond-anton/nts.service/redisclient"
	"github.com/bond-anton/nts.service/series"
	"github.com/bond-anton/nts.service/worker"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ntsworker"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Worker failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.LogLevel != "" {
		cfg.Service.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	level, err := worker.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.Slog())

	ctx := context.Background()

	workerName := fmt.Sprintf("%s:%d", cfg.Service.Name, cfg.Service.WorkerID)
	redisClient := redisclient.NewClient(cfg.Redis.Addr,
		redisclient.WithPassword(cfg.Redis.Password),
		redisclient.WithDB(cfg.Redis.DB),
		redisclient.WithLogStream(cfg.Redis.LogStream),
	)
	if err := redisClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	logger := setupLogger(cliCfg.LogFormat, levelVar, redisClient, workerName)
	slog.SetDefault(logger)
	slog.Info("Starting nts worker",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	bus, cleanupBus, err := setupControlBus(ctx, cfg, logger, redisClient)
	if err != nil {
		return err
	}
	defer cleanupBus()

	registry := metric.NewMetricsRegistry()
	metrics := registry.CoreMetrics()

	store := series.NewStore(cfg.Service.Name, redisClient, series.WithLogger(logger))
	if err := store.CreateChannel(ctx, "heartbeat", 3600, []int{60}); err != nil {
		return fmt.Errorf("create heartbeat channel: %w", err)
	}

	topic := cfg.ControlTopic()
	channel := control.NewChannel(bus, topic,
		control.WithLogger(logger),
		control.WithRecorder(metrics, cfg.Service.Name),
	)
	slog.Info("Control channel configured", "topic", topic, "transport", cfg.Control.Transport)

	w := worker.New(cfg.Service.Name, cfg.Service.Version,
		worker.WithWorkerID(cfg.Service.WorkerID),
		worker.WithDelay(cfg.Service.Delay),
		worker.WithLogLevel(level),
		worker.WithLevelVar(levelVar),
		worker.WithLogger(logger),
		worker.WithControlChannel(channel),
		worker.WithStatusSink(redisClient),
		worker.WithSeriesStore(store),
		worker.WithMetrics(metrics),
		worker.WithJob(heartbeatJob(store)),
		// run() owns teardown; the worker must not terminate the process
		worker.WithExitFunc(func(int) {}),
	)

	return runWorker(ctx, cfg, w, registry)
}

// setupControlBus selects the control transport. Redis shares the main
// client connection; NATS opens its own.
func setupControlBus(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	redisClient *redisclient.Client,
) (control.Bus, func(), error) {
	if cfg.Control.Transport == config.TransportNATS {
		natsBus := natsclient.NewBus(cfg.NATS.URL,
			natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
			natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
			natsclient.WithCredentials(cfg.NATS.Credentials),
			natsclient.WithClientName(cfg.Service.Name),
			natsclient.WithLogger(logger),
		)
		if err := natsBus.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		return natsBus, func() { _ = natsBus.Close(ctx) }, nil
	}
	return redisClient, func() {}, nil
}

// runWorker executes the worker loop and the metrics endpoint until the
// loop stops, then tears the endpoint down.
func runWorker(ctx context.Context, cfg *config.Config, w *worker.Worker, registry *metric.MetricsRegistry) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry)
	}

	g, gCtx := errgroup.WithContext(runCtx)
	if metricsServer != nil {
		g.Go(func() error {
			slog.Info("Metrics endpoint listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			return metricsServer.Start()
		})
	}
	g.Go(func() error {
		defer cancel()
		err := w.Run(gCtx)
		if metricsServer != nil {
			_ = metricsServer.Stop()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker run: %w", err)
	}
	slog.Info("Worker shutdown complete")
	return nil
}

// heartbeatJob records one liveness sample per tick.
func heartbeatJob(store *series.Store) worker.JobFunc {
	return func(ctx context.Context) error {
		return store.PutData(ctx, "heartbeat", 1)
	}
}
