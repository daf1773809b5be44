package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_http_requests_total",
		Help: "Number of HTTP requests handled, by method, route, and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "monitor_http_request_duration_seconds",
		Help: "Time spent serving HTTP requests.",
	}, []string{"method", "route"})

	executionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_executions_started_total",
		Help: "Number of checklist executions started.",
	})

	alertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_alerts_raised_total",
		Help: "Number of alerts raised during step verification.",
	})
)

func ExecutionStarted() {
	executionsStarted.Inc()
}

func AlertRaised() {
	alertsRaised.Inc()
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RequestMetrics records a counter and latency summary per route. It uses the
// chi route pattern rather than the raw path so that ids do not blow up the
// label cardinality.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		requestsTotal.WithLabelValues(r.Method, route, http.StatusText(ww.Status())).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
