// Package metrics exposes console counters and gauges to Prometheus.
package metrics
