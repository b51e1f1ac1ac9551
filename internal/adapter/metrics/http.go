package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds Prometheus metrics for HTTP request tracking.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics on the given registry.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge)
	return m
}

// unmatchedRoute labels requests that hit no registered route, so scanners
// probing random paths cannot grow the series count.
const unmatchedRoute = "unmatched"

func skipHTTPMetrics(route string) bool {
	return route == "/metrics" || strings.HasPrefix(route, "/health/") || strings.HasPrefix(route, "/static")
}

// responseStatus is the status the client will see. Errors that echo renders
// after this middleware returns (bad JSON, unknown route) have not been
// written yet, so their code is taken from the error.
func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed || err == nil {
		return c.Response().Status
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

// Middleware records request count, latency and in-flight requests per
// route pattern. Probes, /metrics and static assets are skipped.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if skipHTTPMetrics(route) {
				return next(c)
			}
			if route == "" {
				route = unmatchedRoute
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()
			m.InFlightGauge.Dec()

			method := c.Request().Method
			status := strconv.Itoa(responseStatus(c, err))
			m.RequestDuration.WithLabelValues(method, route, status).Observe(elapsed)
			m.RequestsTotal.WithLabelValues(method, route, status).Inc()
			return err
		}
	}
}
