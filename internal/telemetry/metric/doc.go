// Package metric provides Prometheus metrics for sesspool.
//
//   - prometheus.go: registry, counters, histograms and the /metrics handler
//   - collector.go: pool size gauges read at scrape time
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
