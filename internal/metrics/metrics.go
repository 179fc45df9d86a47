// Package metrics exposes the server's Prometheus metrics.
//
// Everything registers on the Registry of a Metrics value rather than the
// global default, so tests and multiple servers in one process do not
// collide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm/hxnav"
)

const namespace = "stories"

// Breaker states as reported by the story API client.
var breakerStates = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// Metrics holds the collectors of one server.
type Metrics struct {
	Registry *prometheus.Registry

	// Navigations counts completed navigations.
	// Labels:
	//   - route: route key of the mounted page
	//   - transition: "true" when a view transition swapped the region
	Navigations *prometheus.CounterVec

	// TeardownFailures counts BeforeDestroy errors by route.
	TeardownFailures *prometheus.CounterVec

	// LifecycleFailures counts render, mount and action failures.
	// Labels:
	//   - route: route key of the page
	//   - op: lifecycle call that failed
	LifecycleFailures *prometheus.CounterVec

	// BreakerState is the story API circuit: 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec

	// CacheFallbacks counts reads served from the offline cache.
	CacheFallbacks *prometheus.CounterVec

	// RequestDuration measures HTTP handling time.
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Total number of page navigations",
		}, []string{"route", "transition"}),
		TeardownFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardown_failures_total",
			Help:      "Total number of failed page teardowns",
		}, []string{"route"}),
		LifecycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_failures_total",
			Help:      "Total number of failed page lifecycle calls",
		}, []string{"route", "op"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_breaker_state",
			Help:      "Story API circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		CacheFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_fallbacks_total",
			Help:      "Total number of reads served from the offline cache",
		}, []string{"kind"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route", "status"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Navigations,
		m.TeardownFailures,
		m.LifecycleFailures,
		m.BreakerState,
		m.CacheFallbacks,
		m.RequestDuration,
	)
	return m
}

// Navigated implements hxnav.Observer.
func (m *Metrics) Navigated(route string, transition bool) {
	m.Navigations.WithLabelValues(route, strconv.FormatBool(transition)).Inc()
}

// TeardownFailed implements hxnav.Observer.
func (m *Metrics) TeardownFailed(route string, err error) {
	m.TeardownFailures.WithLabelValues(route).Inc()
}

// LifecycleFailed implements hxnav.Observer.
func (m *Metrics) LifecycleFailed(err *hxnav.LifecycleError) {
	m.LifecycleFailures.WithLabelValues(err.Route, err.Op).Inc()
}

// SessionsFunc reports fn as the number of live browser sessions. It is
// called at scrape time. Call it once per Metrics.
func (m *Metrics) SessionsFunc(fn func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Number of live browser sessions",
	}, func() float64 { return float64(fn()) }))
}

// BreakerChanged records a circuit breaker transition. Its signature
// matches storyapi.Options.OnStateChange.
func (m *Metrics) BreakerChanged(name, from, to string) {
	m.BreakerState.WithLabelValues(name).Set(breakerStates[to])
}

// CacheFallback records a read served from the offline cache.
func (m *Metrics) CacheFallback(kind string) {
	m.CacheFallbacks.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware times requests. The route label is the chi route pattern so
// path parameters do not explode the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

var _ hxnav.Observer = (*Metrics)(nil)
