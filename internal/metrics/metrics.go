// Package metrics exposes Prometheus collectors for the offer store and the
// HTTP layer. Each Metrics value owns its registry so several servers can run
// in one process.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

const namespace = "ecoscan"

// Metrics holds the collectors of one server.
type Metrics struct {
	registry *prometheus.Registry

	totalPoints    prometheus.Gauge
	carbonScore    prometheus.Gauge
	offers         *prometheus.GaugeVec
	rejections     *prometheus.CounterVec
	catalogReloads *prometheus.CounterVec
	requests       *prometheus.CounterVec
	durations      *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		totalPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "total_points",
			Help:      "Current point balance of the session.",
		}),
		carbonScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "carbon_score",
			Help:      "Cumulative carbon score of the session.",
		}),
		offers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "offers",
			Help:      "Number of offers per partition bucket.",
		}, []string{"bucket"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "rejections_total",
			Help:      "Mutations refused because of invalid input.",
		}, []string{"op"}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "reloads_total",
			Help:      "Catalog reload attempts by source and result.",
		}, []string{"source", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests processed.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.totalPoints,
		m.carbonScore,
		m.offers,
		m.rejections,
		m.catalogReloads,
		m.requests,
		m.durations,
	)
	m.offers.WithLabelValues("available").Set(0)
	m.offers.WithLabelValues("upcoming").Set(0)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe updates the store gauges. It has the offers.Observer signature.
func (m *Metrics) Observe(st offers.AppState) {
	m.totalPoints.Set(float64(st.TotalPoints))
	m.carbonScore.Set(st.CarbonScore)
	m.offers.WithLabelValues("available").Set(float64(len(st.AvailableOffers)))
	m.offers.WithLabelValues("upcoming").Set(float64(len(st.UpcomingOffers)))
}

// Rejected counts a refused mutation.
func (m *Metrics) Rejected(op string) {
	m.rejections.WithLabelValues(op).Inc()
}

// CatalogReloaded counts a catalog reload from source.
func (m *Metrics) CatalogReloaded(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogReloads.WithLabelValues(source, result).Inc()
}

// Middleware records request counts and durations labelled by chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.durations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
