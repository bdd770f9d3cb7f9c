// Package metrics exposes processing counters on a private prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors recorded by the service and HTTP layers.
type Registry struct {
	reg        *prometheus.Registry
	Uploads    *prometheus.CounterVec
	Processing prometheus.Histogram
	Analyses   *prometheus.CounterVec
	Requests   *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetlens_uploads_total",
			Help: "Uploads by final processing status.",
		}, []string{"status"}),
		Processing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheetlens_processing_seconds",
			Help:    "Time spent decoding and profiling one file.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetlens_analyses_total",
			Help: "Aggregations run, by chart kind.",
		}, []string{"chart"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetlens_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}
	r.reg.MustRegister(r.Uploads, r.Processing, r.Analyses, r.Requests,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// Upload counts one upload outcome.
func (r *Registry) Upload(status string) {
	if r == nil {
		return
	}
	r.Uploads.WithLabelValues(status).Inc()
}

// ObserveProcessing records how long processing took since start.
func (r *Registry) ObserveProcessing(start time.Time) {
	if r == nil {
		return
	}
	r.Processing.Observe(time.Since(start).Seconds())
}

// Analysis counts one aggregation.
func (r *Registry) Analysis(chart string) {
	if r == nil {
		return
	}
	r.Analyses.WithLabelValues(chart).Inc()
}

// Request counts one HTTP response.
func (r *Registry) Request(method, route, status string) {
	if r == nil {
		return
	}
	r.Requests.WithLabelValues(method, route, status).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
