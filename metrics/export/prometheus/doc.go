// Package prometheus exposes goProfile engine metrics to Prometheus.
//
// [NewPrometheusExporter] returns an [http.Handler] rendering the text exposition
// format directly from [goProfile.Engine.MetricsSnapshot]. [NewCollector] adapts the
// same snapshot to a client_golang registry. Counter names are prefixed
// goprofile_*_total; the single histogram is goprofile_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the Handler
//     or register the Collector themselves.
//   - Mutate engine state.
package prometheus
