// Package series implements the time-series channel manager layered on top
// of an external series-store capability.
//
// A Store owns the named channels of one service. Each channel is a source
// series tagged {name: <service>, type: "src"}; aggregated channels are
// derived series named "{label}_{function}_{period}s" and tagged with the
// aggregation function, kept in sync by store-side rules. Retention is
// expressed in seconds and converted to milliseconds, with aggregated data
// retained for retention * max(1, period) so a derived series always covers
// enough buckets to be meaningful.
//
// All create operations are idempotent ("ensure exists"), all delete
// operations are no-ops for unknown labels, and a derived series never
// survives its source. The RedisTimeSeries implementation of the Backend
// capability lives in the redisclient package.
package series
