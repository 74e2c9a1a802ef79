package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

// Source supplies metrics to render. *goSession.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

const auditDroppedName = internaldefs.Namespace + "audit_dropped_total"

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render at whatever path the caller mounts it on.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render returns the exposition text. It is empty when metrics are disabled
// and no audit events were dropped.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def.Name, def.Help, internaldefs.Cumulative(raw))
	}
	writeCounter(&b, auditDroppedName, "Audit events dropped under backpressure.", dropped)
	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeCounter(b *strings.Builder, name, help string, v uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name + " " + strconv.FormatUint(v, 10) + "\n")
}

// The core histogram keeps counts only, so _sum is always 0.
func writeHistogram(b *strings.Builder, name, help string, buckets internaldefs.Buckets) {
	writeHeader(b, name, help, "histogram")
	for i, bound := range internaldefs.Bounds {
		b.WriteString(name + `_bucket{le="` + bound.Label + `"} ` + strconv.FormatUint(buckets[i], 10) + "\n")
	}
	b.WriteString(name + "_sum 0\n")
	b.WriteString(name + "_count " + strconv.FormatUint(buckets.Count(), 10) + "\n")
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
