package goSession

import (
	"io"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Audit event types.
const (
	AuditEventLogin             = internalaudit.EventLogin
	AuditEventRefresh           = internalaudit.EventRefresh
	AuditEventLogout            = internalaudit.EventLogout
	AuditEventLogoutAll         = internalaudit.EventLogoutAll
	AuditEventCSRFRejected      = internalaudit.EventCSRFRejected
	AuditEventRevokeUnsupported = internalaudit.EventRevokeUnsupported
)

// MetricID identifies a counter or the resolve latency histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess       = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure       = MetricID(internalmetrics.MetricLoginFailure)
	MetricSessionCreated     = MetricID(internalmetrics.MetricSessionCreated)
	MetricValidateSuccess    = MetricID(internalmetrics.MetricValidateSuccess)
	MetricValidateFailure    = MetricID(internalmetrics.MetricValidateFailure)
	MetricRefreshSuccess     = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure     = MetricID(internalmetrics.MetricRefreshFailure)
	MetricLogout             = MetricID(internalmetrics.MetricLogout)
	MetricLogoutAll          = MetricID(internalmetrics.MetricLogoutAll)
	MetricRevokeUnsupported  = MetricID(internalmetrics.MetricRevokeUnsupported)
	MetricCSRFRejected       = MetricID(internalmetrics.MetricCSRFRejected)
	MetricStorageUnavailable = MetricID(internalmetrics.MetricStorageUnavailable)
	MetricCookiesCleared     = MetricID(internalmetrics.MetricCookiesCleared)
	// MetricResolveLatency is a histogram, not a counter.
	MetricResolveLatency = MetricID(internalmetrics.MetricResolveLatency)
)

// Metrics holds atomic counters and the optional resolve latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled is
// false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
