// Package ntsservice provides a skeleton for long-running background worker
// services controlled remotely over a pub/sub channel and storing numeric
// time series data with automatic aggregation.
//
// # Architecture
//
// A worker is a cooperative poll loop with a simple lifecycle:
//
//	CREATED -> INITIALIZED -> RUNNING -> STOPPING -> STOPPED
//
// Each tick of the running loop drains every pending control message,
// executes the periodic job, and sleeps for the current delay:
//
//	┌──────────────────────────────────────┐
//	│            worker.Worker             │  Lifecycle, delay, log level,
//	│  (Initialize, Run, Stop)             │  status projection
//	└──────────────────────────────────────┘
//	           ↓ drains per tick
//	┌──────────────────────────────────────┐
//	│          control.Channel             │  "cmd::param::param" protocol,
//	│  (exit, delay, custom executor)      │  built-in and custom commands
//	└──────────────────────────────────────┘
//	           ↓ polls
//	┌──────────────────────────────────────┐
//	│    control.Bus (Redis or NATS)       │  Topic per service name or
//	│                                      │  per instance identity
//	└──────────────────────────────────────┘
//
// Alongside the loop, the series package manages labeled time series
// channels with avg and std.s aggregation rules per configured period,
// backed by RedisTimeSeries.
//
// # Packages
//
// Core:
//   - worker: lifecycle state machine, loop, status projection
//   - control: control message protocol and dispatch
//   - series: time series channel and aggregation management
//
// Transports and storage:
//   - redisclient: Redis pub/sub bus, timeseries backend, status hash,
//     log stream tee
//   - natsclient: NATS control bus
//
// Infrastructure:
//   - config: JSON/YAML configuration with environment overrides
//   - metric: Prometheus metrics and exposition endpoint
//   - errors: classified error handling
//
// # Usage
//
// Minimal worker with a Redis control channel:
//
//	client := redisclient.NewClient("localhost:6379")
//	client.Connect(ctx)
//
//	channel := control.NewChannel(client, "myservice")
//	w := worker.New("myservice", "1.0.0",
//	    worker.WithDelay(1),
//	    worker.WithControlChannel(channel),
//	    worker.WithStatusSink(client),
//	    worker.WithJob(func(ctx context.Context) error {
//	        // periodic work
//	        return nil
//	    }),
//	)
//	w.Run(ctx)
//
// Publishing "delay::0.5" on the "myservice" topic changes the loop delay
// at runtime; "exit" stops the worker cleanly.
package ntsservice
