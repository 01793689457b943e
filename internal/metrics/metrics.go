// Package metrics provides Prometheus metrics for the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry for all bridge metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// BridgeMetrics holds the per-gateway polling and publishing metrics.
type BridgeMetrics struct {
	PollsTotal         *prometheus.CounterVec
	PollDuration       prometheus.Histogram
	MappingRefreshes   *prometheus.CounterVec
	ReadingsAssembled  prometheus.Gauge
	HardwareUnits      prometheus.Gauge
	MQTTPublishesTotal *prometheus.CounterVec
}

func NewBridgeMetrics(namespace string) *BridgeMetrics {
	m := &BridgeMetrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Telemetry poll cycles by result.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of telemetry poll cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		MappingRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_refreshes_total",
			Help:      "Sensor mapping refreshes by result.",
		}, []string{"result"}),
		ReadingsAssembled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readings_assembled",
			Help:      "Readings assembled in the last poll cycle.",
		}),
		HardwareUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hardware_units",
			Help:      "Hardware units known from the current mapping table.",
		}),
		MQTTPublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "MQTT publishes by result.",
		}, []string{"result"}),
	}
	Registry.MustRegister(
		m.PollsTotal,
		m.PollDuration,
		m.MappingRefreshes,
		m.ReadingsAssembled,
		m.HardwareUnits,
		m.MQTTPublishesTotal,
	)
	return m
}

const (
	ResultOK    = "ok"
	ResultError = "error"
)
