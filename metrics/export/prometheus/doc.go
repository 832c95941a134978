// Package prometheus provides Prometheus collectors for backoffice metrics.
//
// [NewPrometheusExporter] accepts a [backoffice.Coordinator] and exposes an [http.Handler]
// that renders all backoffice counters and histograms in Prometheus text exposition format.
// Counter names are prefixed backoffice_*_total; the single histogram is
// backoffice_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate coordinator state.
package prometheus
