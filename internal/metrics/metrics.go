// Package metrics holds the Prometheus collectors for the API. Every
// recording method is safe on a nil *Metrics so components can run without
// instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "navis"

// Metrics holds the Prometheus counters and histograms for the service.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route

	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	Classifications *prometheus.CounterVec // labels: level
	Routes          *prometheus.CounterVec // labels: outcome

	SOSAlerts     *prometheus.CounterVec // labels: channel, outcome
	NavyRelay     *prometheus.CounterVec // labels: outcome
	NavyCircuit   prometheus.Gauge
	ActiveSurface prometheus.Gauge
}

func build() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Point classifications by risk level.",
		}, []string{"level"}),
		Routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Route computations by outcome.",
		}, []string{"outcome"}),
		SOSAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sos_notifications_total",
			Help:      "SOS notifications by channel and outcome.",
		}, []string{"channel", "outcome"}),
		NavyRelay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navy_relay_total",
			Help:      "Help assistant relay calls by outcome.",
		}, []string{"outcome"}),
		NavyCircuit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "navy_circuit_open",
			Help:      "1 when the assistant relay circuit is open.",
		}),
		ActiveSurface: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "map_surfaces_active",
			Help:      "Map surfaces currently attached.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HTTPRequests,
		m.HTTPDuration,
		m.GeocodeCache,
		m.Classifications,
		m.Routes,
		m.SOSAlerts,
		m.NavyRelay,
		m.NavyCircuit,
		m.ActiveSurface,
	}
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := build()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to
// avoid "already registered" panics across tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	m := build()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}

// ObserveGeocodeCache records a cache lookup.
func (m *Metrics) ObserveGeocodeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.GeocodeCache.WithLabelValues(result).Inc()
}

// ObserveClassification records one classified point.
func (m *Metrics) ObserveClassification(level string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(level).Inc()
}

// ObserveRoute records a route computation outcome.
func (m *Metrics) ObserveRoute(outcome string) {
	if m == nil {
		return
	}
	m.Routes.WithLabelValues(outcome).Inc()
}

// ObserveSOS records one notifier delivery.
func (m *Metrics) ObserveSOS(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.SOSAlerts.WithLabelValues(channel, outcome).Inc()
}

// ObserveRelay records a help assistant call outcome.
func (m *Metrics) ObserveRelay(outcome string) {
	if m == nil {
		return
	}
	m.NavyRelay.WithLabelValues(outcome).Inc()
}

// SetCircuitOpen flips the relay circuit gauge.
func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.NavyCircuit.Set(1)
		return
	}
	m.NavyCircuit.Set(0)
}

// ObserveHTTP records one served request. route is the matched pattern.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetActiveSurfaces reports how many map surfaces are attached.
func (m *Metrics) SetActiveSurfaces(n int) {
	if m == nil {
		return
	}
	m.ActiveSurface.Set(float64(n))
}
