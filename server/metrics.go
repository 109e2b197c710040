package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the API and the catalog.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SearchesTotal   *prometheus.CounterVec
	ReloadsTotal    *prometheus.CounterVec
	CatalogRows     prometheus.Gauge
	QRDecodesTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotores_http_requests_total",
			Help: "Total HTTP requests served.",
		},
		[]string{"route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promotores_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	searches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotores_searches_total",
			Help: "Total OP searches by outcome.",
		},
		[]string{"outcome"},
	)
	reloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotores_catalog_reloads_total",
			Help: "Total data file loads by result.",
		},
		[]string{"result"},
	)
	rows := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "promotores_catalog_rows",
			Help: "Records in the loaded data file.",
		},
	)
	decodes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotores_qr_decodes_total",
			Help: "Total QR image uploads by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(requests, requestDuration, searches, reloads, rows, decodes)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		SearchesTotal:   searches,
		ReloadsTotal:    reloads,
		CatalogRows:     rows,
		QRDecodesTotal:  decodes,
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// IncSearch counts a search outcome: found, empty or error.
func (m *Metrics) IncSearch(outcome string) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveReload records a data file load. It matches the catalog's
// reload callback.
func (m *Metrics) ObserveReload(rows int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReloadsTotal.WithLabelValues(result).Inc()
	m.CatalogRows.Set(float64(rows))
}

// IncQRDecode counts a QR upload result.
func (m *Metrics) IncQRDecode(result string) {
	if m == nil {
		return
	}
	m.QRDecodesTotal.WithLabelValues(result).Inc()
}
