package metrics

import "github.com/prometheus/client_golang/prometheus"

// RateLimitMetrics counts decisions made by the /generate rate limiter.
type RateLimitMetrics struct {
	Decisions *prometheus.CounterVec
}

// NewRateLimitMetrics creates and registers rate limiter metrics on the given registry.
func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	m := &RateLimitMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Total number of rate limit decisions, by store and result.",
		}, []string{"store", "result"}),
	}

	reg.MustRegister(m.Decisions)
	return m
}

// Observe records one decision. Store errors are counted separately.
func (m *RateLimitMetrics) Observe(store string, allowed bool, err error) {
	result := "allowed"
	switch {
	case err != nil:
		result = "error"
	case !allowed:
		result = "denied"
	}
	m.Decisions.WithLabelValues(store, result).Inc()
}
