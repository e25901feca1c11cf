// Package metrics exposes Prometheus collectors of the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Unmatched labels requests that did not resolve to a resource operation.
const Unmatched = "none"

// Metrics holds the request collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New registers the collectors in a fresh registry together with the
// process and Go runtime collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(namespace, reg, reg)
}

// NewWithRegisterer registers the collectors in registerer.
func NewWithRegisterer(namespace string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		gatherer: gatherer,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"resource", "operation", "method", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"resource", "operation", "method"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of API requests being served",
		}),
	}
}

// Begin marks a request as started and returns the function that records it.
func (m *Metrics) Begin() func(resource, operation, method string, status int) {
	start := time.Now()
	m.inFlight.Inc()
	return func(resource, operation, method string, status int) {
		m.inFlight.Dec()
		m.Observe(resource, operation, method, status, time.Since(start))
	}
}

// Observe records one finished request.
func (m *Metrics) Observe(resource, operation, method string, status int, d time.Duration) {
	if resource == "" {
		resource = Unmatched
	}
	if operation == "" {
		operation = Unmatched
	}
	m.requests.WithLabelValues(resource, operation, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(resource, operation, method).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
