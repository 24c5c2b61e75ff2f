// Package stats collects request, cache and export metrics and serves
// them in prometheus format.
package stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Stats struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	layerCache *prometheus.CounterVec
	exports    *prometheus.CounterVec
	actions    *prometheus.CounterVec
}

func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapent_requests_total",
			Help: "HTTP requests by entity, view kind and status.",
		}, []string{"entity", "kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mapent_request_duration_seconds",
			Help:    "HTTP request duration by entity and view kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity", "kind"}),
		layerCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapent_layer_cache_total",
			Help: "Layer cache lookups by result.",
		}, []string{"entity", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapent_exports_total",
			Help: "Record exports by format.",
		}, []string{"entity", "format"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapent_actions_total",
			Help: "Record additions, changes and deletions.",
		}, []string{"entity", "action"}),
	}
	s.registry.MustRegister(
		s.requests, s.duration, s.layerCache, s.exports, s.actions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Handler serves the metrics endpoint.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Middleware records count and duration of requests to one entity
// view.
func (s *Stats) Middleware(entity, kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, req)
			s.requests.WithLabelValues(entity, kind, strconv.Itoa(sw.status)).Inc()
			s.duration.WithLabelValues(entity, kind).Observe(time.Since(start).Seconds())
		})
	}
}

func (s *Stats) LayerCache(entity string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.layerCache.WithLabelValues(entity, result).Inc()
}

func (s *Stats) Export(entity, format string) {
	s.exports.WithLabelValues(entity, format).Inc()
}

func (s *Stats) Action(entity, action string) {
	s.actions.WithLabelValues(entity, action).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
