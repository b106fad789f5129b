// Package metrics exposes Prometheus collectors for the calendar service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one service instance. Each instance owns
// its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	eventsServed  *prometheus.CounterVec
	moves         *prometheus.CounterVec
	requests      *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calwidget",
		Name:      "event_fetches_total",
		Help:      "Event queries run per widget and result.",
	}, []string{"widget", "result"})
	m.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "calwidget",
		Name:      "event_fetch_duration_seconds",
		Help:      "Time spent building and running event queries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"widget"})
	m.eventsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calwidget",
		Name:      "events_served_total",
		Help:      "Events returned to clients per widget.",
	}, []string{"widget"})
	m.moves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calwidget",
		Name:      "event_moves_total",
		Help:      "Drag and drop updates per widget and result.",
	}, []string{"widget", "result"})
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calwidget",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "code"})
	m.wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "calwidget",
		Name:      "websocket_clients",
		Help:      "Connected websocket clients.",
	})

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.eventsServed,
		m.moves,
		m.requests,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFetch records one event query.
func (m *Metrics) ObserveFetch(widget string, took time.Duration, events int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(widget, result).Inc()
	m.fetchDuration.WithLabelValues(widget).Observe(took.Seconds())
	if err == nil {
		m.eventsServed.WithLabelValues(widget).Add(float64(events))
	}
}

// ObserveMove records one event move.
func (m *Metrics) ObserveMove(widget string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.moves.WithLabelValues(widget, result).Inc()
}

// InstrumentHandler counts requests served by next.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.requests, next)
}

// SetWebsocketClients reports the number of connected websocket clients.
func (m *Metrics) SetWebsocketClients(n int) {
	m.wsClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
