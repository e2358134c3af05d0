package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lemonrest"

// Collector owns a private registry, so several servers can live in one
// process (tests do that) without clashing on registration.
type Collector struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	storageOps      *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec
	records         prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"method", "route"},
		),
		storageOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Storage loads and saves by result.",
			},
			[]string{"op", "result"},
		),
		storageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_duration_seconds",
				Help:      "Duration of storage loads and saves.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"op"},
		),
		records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "collection",
				Name:      "records",
				Help:      "Number of records seen by the last successful load or save.",
			},
		),
	}

	c.registry.MustRegister(
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
		c.storageOps,
		c.storageDuration,
		c.records,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) IncInFlight() {
	c.httpInFlight.Inc()
}

func (c *Collector) DecInFlight() {
	c.httpInFlight.Dec()
}

func (c *Collector) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	method = strings.ToUpper(method)
	c.httpRequests.WithLabelValues(method, route, status).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveLoad(d time.Duration, records int, err error) {
	c.observeStorage("load", d, records, err)
}

func (c *Collector) ObserveSave(d time.Duration, records int, err error) {
	c.observeStorage("save", d, records, err)
}

func (c *Collector) observeStorage(op string, d time.Duration, records int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	c.storageOps.WithLabelValues(op, result).Inc()
	c.storageDuration.WithLabelValues(op).Observe(d.Seconds())
	if err == nil {
		c.records.Set(float64(records))
	}
}
