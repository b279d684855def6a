package ops

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/evan-idocoding/zsync/rt/ratelimit"
)

// StatsSource provides limiter statistics. *ratelimit.Keyed implements it.
type StatsSource interface {
	Stats() ratelimit.Stats
}

type limiterCollector struct {
	src StatsSource

	keys       *prometheus.Desc
	throttled  *prometheus.Desc
	poisoned   *prometheus.Desc
	generation *prometheus.Desc
	pruned     *prometheus.Desc
}

// NewLimiterCollector returns a Prometheus collector exporting the statistics of a
// keyed limiter, labelled limiter=name:
//   - zsync_ratelimit_keys: tracked keys
//   - zsync_ratelimit_throttled_keys: keys that would deny a single-unit request now
//   - zsync_ratelimit_poisoned_keys: keys whose cell was poisoned, until pruned
//   - zsync_ratelimit_generation: key-set generations published so far
//   - zsync_ratelimit_pruned_keys_total: keys removed by Prune
//
// Statistics are read on every scrape and are advisory.
func NewLimiterCollector(name string, src StatsSource) prometheus.Collector {
	if src == nil {
		panic("ops: nil limiter stats source")
	}
	labels := prometheus.Labels{"limiter": name}
	return &limiterCollector{
		src: src,
		keys: prometheus.NewDesc("zsync_ratelimit_keys",
			"Number of keys tracked by the limiter.", nil, labels),
		throttled: prometheus.NewDesc("zsync_ratelimit_throttled_keys",
			"Number of keys currently throttled.", nil, labels),
		poisoned: prometheus.NewDesc("zsync_ratelimit_poisoned_keys",
			"Number of keys whose cell was poisoned by a panicking decision.", nil, labels),
		generation: prometheus.NewDesc("zsync_ratelimit_generation",
			"Number of key-set generations published by the limiter.", nil, labels),
		pruned: prometheus.NewDesc("zsync_ratelimit_pruned_keys_total",
			"Number of keys removed by pruning.", nil, labels),
	}
}

func (c *limiterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.throttled
	ch <- c.poisoned
	ch <- c.generation
	ch <- c.pruned
}

func (c *limiterCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.Keys))
	ch <- prometheus.MustNewConstMetric(c.throttled, prometheus.GaugeValue, float64(st.Throttled))
	ch <- prometheus.MustNewConstMetric(c.poisoned, prometheus.GaugeValue, float64(st.Poisoned))
	ch <- prometheus.MustNewConstMetric(c.generation, prometheus.CounterValue, float64(st.Generation))
	ch <- prometheus.MustNewConstMetric(c.pruned, prometheus.CounterValue, float64(st.Pruned))
}
