// Package metrics exposes Prometheus collectors shared by the fetch layer and
// the scraper.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request kinds used as the "kind" label.
const (
	KindText   = "text"
	KindBinary = "binary"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	ProductsWritten  prometheus.Counter
	ImagesSaved      prometheus.Counter
	IndexPagesTotal  prometheus.Counter
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	CategoriesFailed prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcrawl_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookcrawl_request_duration_seconds",
			Help:    "HTTP request latency including the politeness delay.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_products_written_total",
			Help: "Total number of product records appended to an output file.",
		},
	)
	images := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_images_saved_total",
			Help: "Total number of product images written to disk.",
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_index_pages_total",
			Help: "Total number of index pages walked.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcrawl_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	categoriesFailed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_categories_failed_total",
			Help: "Total number of categories that finished with errors.",
		},
	)

	registry.MustRegister(requests, requestDuration, products, images, pages, retries, errorsTotal, categoriesFailed)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		ProductsWritten:  products,
		ImagesSaved:      images,
		IndexPagesTotal:  pages,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		CategoriesFailed: categoriesFailed,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncProducts increments the products written counter.
func (m *Metrics) IncProducts() {
	if m == nil {
		return
	}
	m.ProductsWritten.Inc()
}

// IncImages increments the images saved counter.
func (m *Metrics) IncImages() {
	if m == nil {
		return
	}
	m.ImagesSaved.Inc()
}

// IncPages increments the index pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.IndexPagesTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCategoryFailed increments the failed categories counter.
func (m *Metrics) IncCategoryFailed() {
	if m == nil {
		return
	}
	m.CategoriesFailed.Inc()
}
