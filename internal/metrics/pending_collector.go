package metrics

import "github.com/prometheus/client_golang/prometheus"

// PendingStatFunc returns the outstanding operation count keyed by slice name.
type PendingStatFunc func() map[string]int

// pendingCollector implements prometheus.Collector for slice pending counts.
type pendingCollector struct {
	statFunc PendingStatFunc
	desc     *prometheus.Desc
}

// NewPendingCollector creates a collector that exposes one gauge per slice.
func NewPendingCollector(statFunc PendingStatFunc) prometheus.Collector {
	return &pendingCollector{
		statFunc: statFunc,
		desc: prometheus.NewDesc(
			"formdesk_slice_pending_operations",
			"Number of outstanding operations per state slice.",
			[]string{"slice"}, nil,
		),
	}
}

// Describe sends the descriptors of each metric to the channel.
func (c *pendingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect reads the current counts and sends them as gauge metrics.
func (c *pendingCollector) Collect(ch chan<- prometheus.Metric) {
	for slice, n := range c.statFunc() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), slice)
	}
}
