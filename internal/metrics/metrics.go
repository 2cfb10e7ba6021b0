// Package metrics exposes Prometheus collectors for the web server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"abbonamenti/internal/core"
)

// Mutation results.
const (
	ResultSaved   = "saved"
	ResultIgnored = "ignored"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	MutationsTotal *prometheus.CounterVec

	Subscriptions    prometheus.Gauge
	MonthlyCost      prometheus.Gauge
	UpcomingRenewals prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abbonamenti_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "abbonamenti_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abbonamenti_mutations_total",
				Help: "Subscription mutations by operation and result",
			},
			[]string{"operation", "result"},
		),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "abbonamenti_subscriptions",
			Help: "Number of stored subscriptions at the last listing",
		}),
		MonthlyCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "abbonamenti_monthly_cost",
			Help: "Sum of all subscription costs at the last listing",
		}),
		UpcomingRenewals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "abbonamenti_upcoming_renewals",
			Help: "Subscriptions renewing inside the alert window at the last listing",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.MutationsTotal,
		m.Subscriptions,
		m.MonthlyCost,
		m.UpcomingRenewals,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Register adds extra collectors, such as CounterFuncs over other packages'
// counters.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per chi route pattern, so ids in
// paths don't explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordMutation(op, result string) {
	m.MutationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveOverview updates the gauges from a freshly built listing.
func (m *Metrics) ObserveOverview(ov core.Overview) {
	m.Subscriptions.Set(float64(len(ov.Items)))
	m.MonthlyCost.Set(ov.Total.InexactFloat64())
	m.UpcomingRenewals.Set(float64(ov.Upcoming))
}
