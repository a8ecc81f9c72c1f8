// Package otel publishes serverAuth counters through OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per counter and, for the
// signing latency histogram, a bucket gauge keyed by an le attribute. A single
// callback reads [serverAuth.ServerAuth.MetricsSnapshot] on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
package otel
