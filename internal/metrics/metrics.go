// Package metrics exposes Prometheus collectors for the canvas server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, registered on a private registry.
// All methods are safe on a nil receiver so components can run without it.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Parses        *prometheus.CounterVec
	ParseDuration prometheus.Histogram
	Updates       *prometheus.CounterVec
	Saves         *prometheus.CounterVec
	Elements      prometheus.Gauge
	Subscribers   prometheus.Gauge
}

// New creates the collectors under namespace
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Parses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parses_total",
				Help:      "Document parses by source and outcome",
			},
			[]string{"source", "status"},
		),
		ParseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_duration_seconds",
				Help:      "Time spent parsing the canvas file",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		Updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Element updates by outcome",
			},
			[]string{"status"},
		),
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_total",
				Help:      "Writes of the canvas file by outcome",
			},
			[]string{"status"},
		),
		Elements: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "elements",
				Help:      "Elements in the current document",
			},
		),
		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscribers",
				Help:      "Connected change-notification subscribers",
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Parses,
		m.ParseDuration,
		m.Updates,
		m.Saves,
		m.Elements,
		m.Subscribers,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveParse records one parse of the canvas file
func (m *Metrics) ObserveParse(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Parses.WithLabelValues(source, status(err)).Inc()
	m.ParseDuration.Observe(d.Seconds())
}

// ObserveUpdate records an update outcome: ok, stale or error
func (m *Metrics) ObserveUpdate(outcome string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSave(err error) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) SetElements(n int) {
	if m == nil {
		return
	}
	m.Elements.Set(float64(n))
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
