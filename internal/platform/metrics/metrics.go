// Package metrics holds the Prometheus instruments of the extraction service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	// Extraction metrics
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	MeasurementsTotal  *prometheus.CounterVec
	BatchSize          prometheus.Histogram

	// Orthanc metrics
	OrthancRequestsTotal   *prometheus.CounterVec
	OrthancRequestDuration *prometheus.HistogramVec

	// Archive metrics
	ArchiveWritesTotal *prometheus.CounterVec

	// HTTP server metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates the metrics and registers them with reg. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacs_extractions_total",
				Help: "Measurement extractions by outcome",
			},
			[]string{"status"},
		),

		ExtractionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pacs_extraction_duration_seconds",
				Help:    "Single-instance extraction time distribution",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		MeasurementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacs_measurements_total",
				Help: "Consolidated measurements returned, by source",
			},
			[]string{"source"},
		),

		BatchSize: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pacs_extraction_batch_size",
				Help:    "Number of instances per batch request",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),

		OrthancRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacs_orthanc_requests_total",
				Help: "Requests sent to Orthanc by endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),

		OrthancRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pacs_orthanc_request_duration_seconds",
				Help:    "Orthanc request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		ArchiveWritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacs_archive_writes_total",
				Help: "Extraction archive writes by outcome",
			},
			[]string{"status"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pacs_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pacs_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),

		HTTPActiveRequests: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "pacs_http_active_requests",
				Help: "Requests currently being served",
			},
		),

		gatherer: reg,
	}
}

// RecordExtraction records the outcome of one extraction.
func (m *Metrics) RecordExtraction(success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.ExtractionsTotal.WithLabelValues(status).Inc()
	m.ExtractionDuration.Observe(d.Seconds())
}

// RecordMeasurement counts a returned measurement by source.
func (m *Metrics) RecordMeasurement(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.MeasurementsTotal.WithLabelValues(source).Inc()
}

// RecordBatch records the size of a batch request.
func (m *Metrics) RecordBatch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

// RecordOrthancRequest records one Orthanc call. A status of 0 means the
// request never produced a response.
func (m *Metrics) RecordOrthancRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.OrthancRequestsTotal.WithLabelValues(endpoint, code).Inc()
	m.OrthancRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordArchiveWrite records an archive write outcome.
func (m *Metrics) RecordArchiveWrite(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ArchiveWritesTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActive increments the in-flight gauge and returns the matching
// decrement.
func (m *Metrics) TrackActive() func() {
	if m == nil {
		return func() {}
	}
	m.HTTPActiveRequests.Inc()
	return m.HTTPActiveRequests.Dec
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
