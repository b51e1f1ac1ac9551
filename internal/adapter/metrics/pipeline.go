package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/textpulse/internal/domain"
)

var modelStates = []domain.ModelState{
	domain.ModelUnloaded,
	domain.ModelLoading,
	domain.ModelLoaded,
	domain.ModelLoadFailed,
}

var breakerStates = []string{"closed", "half-open", "open"}

// PipelineMetrics holds Prometheus metrics for classification and generation.
type PipelineMetrics struct {
	Classifications    *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ModelState         *prometheus.GaugeVec
	BreakerState       *prometheus.GaugeVec
}

// NewPipelineMetrics creates and registers pipeline metrics on the given registry.
// The model starts out in the unloaded state and the breaker closed.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Total number of classified texts, by scorer and label.",
		}, []string{"scorer", "label"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generate calls, by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of generate calls in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ModelState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_state",
			Help:      "Current generation model state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_breaker_state",
			Help:      "Current model server circuit breaker state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
	}

	reg.MustRegister(m.Classifications, m.Generations, m.GenerationDuration, m.ModelState, m.BreakerState)
	m.ModelStateChanged(domain.ModelUnloaded)
	m.BreakerStateChanged("closed")
	return m
}

func (m *PipelineMetrics) Classified(scorer string, label domain.Label) {
	m.Classifications.WithLabelValues(scorer, string(label)).Inc()
}

func (m *PipelineMetrics) ModelStateChanged(state domain.ModelState) {
	for _, s := range modelStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.ModelState.WithLabelValues(s.String()).Set(value)
	}
}

func (m *PipelineMetrics) GenerationFinished(outcome domain.Outcome, elapsed time.Duration) {
	m.Generations.WithLabelValues(string(outcome)).Inc()
	m.GenerationDuration.Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) BreakerStateChanged(state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.BreakerState.WithLabelValues(s).Set(value)
	}
}
