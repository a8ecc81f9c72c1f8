// Package prometheus exposes serverAuth metrics as a prometheus.Collector.
//
// Counter names are prefixed serverauth_*_total; the signing latency histogram is
// serverauth_sign_latency_seconds and is only published when latency histograms
// are enabled.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry. Callers choose the registry.
//   - Mutate ServerAuth state.
package prometheus
