// Package prometheus provides a Prometheus collector for goSession metrics.
//
// [NewCollector] wraps a [goSession.Manager] (or any snapshot source) as a
// prometheus.Collector. Counter names are prefixed gosession_*_total; the latency
// histograms are gosession_login_latency_seconds and gosession_refresh_latency_seconds.
// [Handler] serves a private registry holding only the collector.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers choose the registry.
//   - Mutate manager state.
package prometheus
