// Package otel provides OpenTelemetry metric bindings for goSession counters and
// latency histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter for each Manager counter and,
// per latency histogram, a cumulative bucket gauge carrying an le attribute plus a
// count gauge. A single callback reads [goSession.Manager.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate manager state.
package otel
