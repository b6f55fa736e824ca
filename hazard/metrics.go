package hazard

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is any domain exposing reclamation counters. It exists so the
// collector does not carry the domain's type parameter.
type StatsSource interface {
	Stats() Stats
}

// Collector bridges a domain's counters into a prometheus registry.
type Collector struct {
	src StatsSource

	retired   *prometheus.Desc
	reclaimed *prometheus.Desc
	deferred  *prometheus.Desc
	passes    *prometheus.Desc
	live      *prometheus.Desc
}

// NewCollector builds a collector for src; name distinguishes domains in the
// "domain" label.
func NewCollector(name string, src StatsSource) *Collector {
	labels := prometheus.Labels{"domain": name}
	return &Collector{
		src: src,
		retired: prometheus.NewDesc("hazard_retired_total",
			"Pointers handed over for deferred freeing.", nil, labels),
		reclaimed: prometheus.NewDesc("hazard_reclaimed_total",
			"Retired pointers freed by reclamation passes.", nil, labels),
		deferred: prometheus.NewDesc("hazard_deferred",
			"Retired pointers still protected after the last pass.", nil, labels),
		passes: prometheus.NewDesc("hazard_passes_total",
			"Reclamation passes run.", nil, labels),
		live: prometheus.NewDesc("hazard_slots_live",
			"Announcement slots currently claimed.", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.retired
	ch <- c.reclaimed
	ch <- c.deferred
	ch <- c.passes
	ch <- c.live
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.retired, prometheus.CounterValue, float64(s.Retired))
	ch <- prometheus.MustNewConstMetric(c.reclaimed, prometheus.CounterValue, float64(s.Reclaimed))
	ch <- prometheus.MustNewConstMetric(c.deferred, prometheus.GaugeValue, float64(s.Deferred))
	ch <- prometheus.MustNewConstMetric(c.passes, prometheus.CounterValue, float64(s.Passes))
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live))
}
