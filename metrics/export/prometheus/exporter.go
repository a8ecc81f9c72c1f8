package prometheus

import (
	"net/http"

	serverAuth "github.com/MrEthical07/serverAuth"
	"github.com/MrEthical07/serverAuth/metrics/export/internaldefs"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by *serverAuth.ServerAuth.
type MetricsSource interface {
	MetricsSnapshot() serverAuth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   serverAuth.MetricID
	desc *promclient.Desc
}

type histogramDesc struct {
	id   serverAuth.MetricID
	desc *promclient.Desc
}

// Collector is a prometheus.Collector reading a serverAuth metrics snapshot on
// every scrape.
type Collector struct {
	source       MetricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *promclient.Desc
}

var _ promclient.Collector = (*Collector)(nil)

// NewCollector returns a collector for auth. Register it with a registry of your
// choice, or serve it through Handler.
func NewCollector(auth *serverAuth.ServerAuth) *Collector {
	return NewCollectorFromSource(auth)
}

func NewCollectorFromSource(source MetricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: promclient.NewDesc(
			internaldefs.AuditDroppedName,
			"Audit events dropped on a full dispatcher buffer.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: promclient.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: promclient.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *promclient.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.auditDropped
}

func (c *Collector) Collect(ch chan<- promclient.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, d := range c.counters {
			ch <- promclient.MustNewConstMetric(d.desc, promclient.CounterValue, float64(snapshot.Counters[d.id]))
		}
	}

	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// snapshots carry no sum
		ch <- promclient.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- promclient.MustNewConstMetric(c.auditDropped, promclient.CounterValue, float64(c.source.AuditDropped()))
}

// Handler serves the collector from a private registry.
func (c *Collector) Handler() http.Handler {
	registry := promclient.NewRegistry()
	registry.MustRegister(c)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
