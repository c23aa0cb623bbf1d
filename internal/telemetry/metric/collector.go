package metric

import "github.com/prometheus/client_golang/prometheus"

// PoolSize is a point-in-time view of one origin's pool.
type PoolSize struct {
	Valid        int
	Total        int
	Replenishing bool
}

// PoolSource reports current pool sizes keyed by origin.
type PoolSource interface {
	PoolSizes() map[string]PoolSize
}

// Collector exports pool gauges computed at scrape time.
type Collector struct {
	source PoolSource

	credentials  *prometheus.Desc
	replenishing *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source PoolSource) *Collector {
	return &Collector{
		source: source,
		credentials: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "credentials"),
			"Credentials held per origin, by state (valid, total).",
			[]string{"origin", "state"}, nil,
		),
		replenishing: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "replenishing"),
			"1 while a replenishment run is in flight for the origin.",
			[]string{"origin"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.credentials
	ch <- c.replenishing
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for origin, size := range c.source.PoolSizes() {
		ch <- prometheus.MustNewConstMetric(c.credentials, prometheus.GaugeValue, float64(size.Valid), origin, "valid")
		ch <- prometheus.MustNewConstMetric(c.credentials, prometheus.GaugeValue, float64(size.Total), origin, "total")

		var inFlight float64
		if size.Replenishing {
			inFlight = 1
		}
		ch <- prometheus.MustNewConstMetric(c.replenishing, prometheus.GaugeValue, inFlight, origin)
	}
}

// RegisterPool registers a collector for source with r.
func (r *Registry) RegisterPool(source PoolSource) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(NewCollector(source))
}
