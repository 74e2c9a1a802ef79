// Package metrics provides lock-free counters and a resolve latency histogram
// for session lifecycle observability.
//
// Counters live in cache-line-padded uint64 slots and are incremented with
// sync/atomic. The histogram has 8 fixed buckets (<=5ms up to +Inf). Writes
// never allocate.
//
// Export (Prometheus text, OTel) lives in metrics/export and reads Snapshot
// values. This package performs no I/O and imports no sibling package.
package metrics
