package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/linecomp/pattern"
)

var (
	patternBytesDesc = prometheus.NewDesc(
		"linecomp_pattern_bytes",
		"Bytes attributed to each pattern.",
		[]string{"analyzer", "workload", "pattern", "encoding"}, nil)
	totalBytesDesc = prometheus.NewDesc(
		"linecomp_total_bytes",
		"Bytes processed.",
		[]string{"analyzer", "workload"}, nil)
	entropyDesc = prometheus.NewDesc(
		"linecomp_entropy_bits_per_byte",
		"Byte-value entropy of the processed lines.",
		[]string{"analyzer", "workload", "lines"}, nil)
	cacheLookupsDesc = prometheus.NewDesc(
		"linecomp_history_lookups",
		"Temporal-locality history lookups by result.",
		[]string{"analyzer", "workload", "result"}, nil)
)

// statsCollector exports the latest snapshot of every registered source. The
// analyzer label tells apart sources that share a workload name.
type statsCollector struct {
	monitor *Monitor
}

func (c statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- patternBytesDesc
	ch <- totalBytesDesc
	ch <- entropyDesc
	ch <- cacheLookupsDesc
}

func (c statsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.monitor.registeredSources() {
		s := src.Snapshot()
		if s == nil {
			continue
		}

		name := src.Name()

		gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
			labels = append([]string{src.key}, labels...)
			ch <- prometheus.MustNewConstMetric(
				desc, prometheus.GaugeValue, v, labels...)
		}

		gauge(totalBytesDesc, float64(s.Total), name)
		gauge(patternBytesDesc, float64(s.Z), name, pattern.Zeros.String(), "none")
		gauge(patternBytesDesc, float64(s.R), name, pattern.Repeat.String(), "none")
		gauge(patternBytesDesc, float64(s.T), name,
			pattern.TemporalLocality.String(), "none")
		gauge(patternBytesDesc, float64(s.U), name, pattern.NotDefined.String(), "none")

		for i, g := range pattern.Granularities {
			gauge(patternBytesDesc, float64(s.ImplicitCounts[i]),
				name, g.String(), "implicit")
			gauge(patternBytesDesc, float64(s.ExplicitCounts[i]),
				name, g.String(), "explicit")
		}

		gauge(entropyDesc, s.Entropy(), name, "all")
		gauge(entropyDesc, s.EntropyExceptTrivial(), name, "except_trivial")

		cache := src.CacheStats()
		gauge(cacheLookupsDesc, float64(cache.Hits), name, "hit")
		gauge(cacheLookupsDesc, float64(cache.Misses), name, "miss")
	}
}
