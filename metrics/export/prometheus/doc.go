// Package prometheus exposes engine metrics in the Prometheus text format
// without depending on the Prometheus client library. Mount
// [Exporter.Handler] on a scrape path; nothing is registered globally.
//
// Counters are named gosession_*_total and the resolve latency histogram is
// gosession_resolve_latency_seconds.
package prometheus
