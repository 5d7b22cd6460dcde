// Package metrics records per-pair conversion statistics and exposes them as
// Prometheus collectors.
//
// A Recorder owns its own prometheus.Registry so tests and embedded engines do
// not collide on the default registry. Every step attempt (direct or inside a
// chain) is observed once, keyed by its "source->target" pair:
//   - transmute_conversions_total{source,target,status}
//   - transmute_conversion_duration_seconds{source,target}
//   - transmute_batch_tasks_total{status}
//   - transmute_batch_tasks_in_flight
//
// Snapshot returns the in-process view (count, total time, failures, success
// rate, average time) used by the CLI summary. WriteTextfile exports the
// registry for the node_exporter textfile collector.
package metrics
