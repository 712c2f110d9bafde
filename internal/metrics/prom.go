package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is a Sink backed by its own registry, served on /metrics.
type Prometheus struct {
	registry *prometheus.Registry

	items    *prometheus.CounterVec
	duration prometheus.Histogram
	retries  *prometheus.CounterVec
	batches  prometheus.Counter
	skipped  prometheus.Counter
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	provider *prometheus.HistogramVec
}

// NewPrometheus registers the catalogue collectors plus the Go runtime and
// process collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_items_total",
			Help: "Work items settled, by terminal status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_item_duration_seconds",
			Help:    "Per-item processing time measured from sub-chunk dispatch.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_retries_total",
			Help: "Retries of external calls, by operation.",
		}, []string{"operation"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_batches_total",
			Help: "Sub-chunks dispatched.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_skipped_files_total",
			Help: "Input files dropped for size or type.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "HTTP requests, by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		provider: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_provider_call_duration_seconds",
			Help:    "Latency of inference provider calls, by provider and result.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"provider", "result"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.items, p.duration, p.retries, p.batches, p.skipped, p.requests, p.latency, p.provider,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) ItemSettled(status string, d time.Duration) {
	p.items.WithLabelValues(status).Inc()
	p.duration.Observe(d.Seconds())
}

func (p *Prometheus) Retried(operation string) {
	p.retries.WithLabelValues(operation).Inc()
}

func (p *Prometheus) BatchDone(int, time.Duration) {
	p.batches.Inc()
}

func (p *Prometheus) SkippedFiles(n int) {
	p.skipped.Add(float64(n))
}

func (p *Prometheus) Request(endpoint string, status int, d time.Duration) {
	p.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	p.latency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (p *Prometheus) ProviderCall(provider, result string, d time.Duration) {
	p.provider.WithLabelValues(provider, result).Observe(d.Seconds())
}
