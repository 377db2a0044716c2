// Package metric provides Prometheus instrumentation for worker services:
// a core set of lifecycle, control-channel, and series-store metrics, a
// registry that owns a dedicated Prometheus registry with Go runtime
// collectors, and an HTTP server exposing it.
package metric
