// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge, all fed by a single callback that reads
// Engine.MetricsSnapshot. The caller owns the MeterProvider.
package otel
