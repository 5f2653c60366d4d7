package fib

import "github.com/prometheus/client_golang/prometheus"

// Collector adapts a Table's Stats into a prometheus.Collector, the way
// middleware/metrics.Metrics wraps counters for registration. Construct
// one per table and register it with prometheus.Register; unlike the
// teacher's global counters, these are computed on demand from Stats so
// there is nothing to keep in sync on every operation.
type Collector[K Key[K], V any] struct {
	t      *Table[K, V]
	family string

	entries      *prometheus.Desc
	rehashes     *prometheus.Desc
	hazardInUse  *prometheus.Desc
	retiredDepth *prometheus.Desc
}

// NewCollector builds a Collector for t. t's family is used as a constant
// "family" label on every exported metric so multiple tables (one per address
// family) can share a registry.
func NewCollector[K Key[K], V any](t *Table[K, V]) *Collector[K, V] {
	family := t.Family().String()
	labels := prometheus.Labels{"family": family}
	return &Collector[K, V]{
		t:      t,
		family: family,
		entries: prometheus.NewDesc(
			"fib_entries", "Number of routes currently in the table.",
			nil, labels),
		rehashes: prometheus.NewDesc(
			"fib_rehashes_total", "Number of completed directory expansions.",
			nil, labels),
		hazardInUse: prometheus.NewDesc(
			"fib_hazard_slots_in_use", "Hazard registry slots currently reserved.",
			nil, labels),
		retiredDepth: prometheus.NewDesc(
			"fib_retired_queue_depth", "Nodes awaiting reclamation.",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector[K, V]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.rehashes
	ch <- c.hazardInUse
	ch <- c.retiredDepth
}

// Collect implements prometheus.Collector.
func (c *Collector[K, V]) Collect(ch chan<- prometheus.Metric) {
	s := c.t.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.rehashes, prometheus.CounterValue, float64(s.Rehashes))
	ch <- prometheus.MustNewConstMetric(c.hazardInUse, prometheus.GaugeValue, float64(s.HazardInUse))
	ch <- prometheus.MustNewConstMetric(c.retiredDepth, prometheus.GaugeValue, float64(s.RetiredDepth))
}
