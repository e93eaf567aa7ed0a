// Package metrics implements spec.md §6's /metrics endpoint: a private
// prometheus.Registry (not the global default, so embedding gatewire in a
// larger process never collides with that process's own metrics) exposing
// the runtime's lifecycle state, uptime, gateway count, and memory
// footprint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightloom/gatewire/internal/runtime"
	"github.com/brightloom/gatewire/pkg/nerdstats"
)

// memoryCollector reads runtime/MemStats once per scrape and emits the
// three memory gauges spec.md §6 names, rather than letting three separate
// GaugeFunc collectors each trigger their own runtime.ReadMemStats call.
type memoryCollector struct {
	startTime time.Time
	heapUsed  *prometheus.Desc
	heapTotal *prometheus.Desc
	rss       *prometheus.Desc
}

func newMemoryCollector(startTime time.Time) *memoryCollector {
	return &memoryCollector{
		startTime: startTime,
		heapUsed:  prometheus.NewDesc("proxy_engine_memory_heap_used_bytes", "Heap bytes currently in use.", nil, nil),
		heapTotal: prometheus.NewDesc("proxy_engine_memory_heap_total_bytes", "Heap bytes obtained from the OS.", nil, nil),
		rss:       prometheus.NewDesc("proxy_engine_memory_rss_bytes", "Resident set size reported by the OS, 0 if unavailable.", nil, nil),
	}
}

func (c *memoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.heapUsed
	ch <- c.heapTotal
	ch <- c.rss
}

func (c *memoryCollector) Collect(ch chan<- prometheus.Metric) {
	snap := nerdstats.Snapshot(c.startTime)
	ch <- prometheus.MustNewConstMetric(c.heapUsed, prometheus.GaugeValue, float64(snap.HeapInuse))
	ch <- prometheus.MustNewConstMetric(c.heapTotal, prometheus.GaugeValue, float64(snap.HeapSys))
	ch <- prometheus.MustNewConstMetric(c.rss, prometheus.GaugeValue, float64(snap.RSSBytes))
}

// Handler wires rt's lifecycle state into a private prometheus.Registry
// and returns an http.Handler serving it in Prometheus text exposition
// format.
func Handler(rt *runtime.Runtime, startTime time.Time) http.Handler {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "proxy_engine_state",
			Help: "Runtime lifecycle state: 0=stopped, 1=starting, 2=running, 3=stopping, 4=error.",
		},
		func() float64 { return float64(rt.State()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "proxy_engine_uptime_seconds",
			Help: "Seconds since the runtime entered the running state.",
		},
		func() float64 { return rt.Uptime().Seconds() },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "proxy_engine_active_gateways",
			Help: "Number of configured gateway listeners.",
		},
		func() float64 { return float64(rt.GatewayCount()) },
	))
	reg.MustRegister(newMemoryCollector(startTime))

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
