package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryanbastic/go-sheetcms/internal/cache"
)

// StatsSource reports cumulative cache counters.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheCollector implements prometheus.Collector for sheet cache statistics.
// Stats are read on demand during each Prometheus scrape.
type CacheCollector struct {
	source StatsSource

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	insertions *prometheus.Desc
	evictions  *prometheus.Desc
	entries    *prometheus.Desc
}

// NewCacheCollector creates a collector that exports source's counters.
func NewCacheCollector(source StatsSource) *CacheCollector {
	return &CacheCollector{
		source: source,
		hits: prometheus.NewDesc(
			"sheetcms_cache_hits_total",
			"Cumulative count of snapshot reads served from cache.",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			"sheetcms_cache_misses_total",
			"Cumulative count of snapshot reads that went to the store.",
			nil, nil,
		),
		insertions: prometheus.NewDesc(
			"sheetcms_cache_insertions_total",
			"Cumulative count of snapshots stored.",
			nil, nil,
		),
		evictions: prometheus.NewDesc(
			"sheetcms_cache_evictions_total",
			"Cumulative count of snapshots evicted or invalidated.",
			nil, nil,
		),
		entries: prometheus.NewDesc(
			"sheetcms_cache_entries",
			"Number of sheets currently cached.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.insertions
	ch <- c.evictions
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.insertions, prometheus.CounterValue, float64(s.Insertions))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
}
