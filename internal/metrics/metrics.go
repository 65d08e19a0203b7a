package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PriceLookups        *prometheus.CounterVec // labels: outcome=cached|fetched|failed
	PriceAttempts       prometheus.Counter
	PriceLookupDuration prometheus.Histogram
	BatchSymbols        prometheus.Gauge

	HTTPRequests *prometheus.CounterVec // labels: method, status
	HTTPDuration prometheus.Histogram

	WSClients prometheus.Gauge
	Backups   *prometheus.CounterVec // labels: outcome=ok|failed

	gatherer prometheus.Gatherer
}

// New creates and registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PriceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "investlog_price_lookups_total",
			Help: "Price resolutions by outcome",
		}, []string{"outcome"}),
		PriceAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investlog_price_fetch_attempts_total",
			Help: "External price source calls",
		}),
		PriceLookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "investlog_price_lookup_duration_seconds",
			Help:    "Time to resolve one symbol, including backoff",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}),
		BatchSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "investlog_price_batch_symbols",
			Help: "Symbols in the last batch resolution",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "investlog_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "investlog_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "investlog_ws_clients",
			Help: "Connected websocket clients",
		}),
		Backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "investlog_backups_total",
			Help: "Backup runs by outcome",
		}, []string{"outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.PriceLookups,
		m.PriceAttempts,
		m.PriceLookupDuration,
		m.BatchSymbols,
		m.HTTPRequests,
		m.HTTPDuration,
		m.WSClients,
		m.Backups,
	)
	return m
}

func (m *Metrics) ObserveLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(outcome).Inc()
	m.PriceLookupDuration.Observe(d.Seconds())
}

func (m *Metrics) IncAttempt() {
	if m == nil {
		return
	}
	m.PriceAttempts.Inc()
}

func (m *Metrics) SetBatchSize(n int) {
	if m == nil {
		return
	}
	m.BatchSymbols.Set(float64(n))
}

func (m *Metrics) ObserveHTTP(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, status).Inc()
	m.HTTPDuration.Observe(d.Seconds())
}

func (m *Metrics) AddWSClients(delta int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(delta))
}

func (m *Metrics) ObserveBackup(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Backups.WithLabelValues("failed").Inc()
		return
	}
	m.Backups.WithLabelValues("ok").Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
