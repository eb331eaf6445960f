package council

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Agent and synthesis outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
	OutcomeFallback  = "fallback"
)

// Metrics exposes Prometheus collectors for council activity. A nil
// *Metrics records nothing.
type Metrics struct {
	agents        *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
	synthesis     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runsActive    prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns metrics registered once with the global registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the council collectors with reg and panics on
// any registration error other than an identical collector already being
// registered, in which case the existing one is reused.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		agents: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foundry",
				Subsystem: "council",
				Name:      "agents_total",
				Help:      "Council agents that reached a terminal status, by outcome.",
			},
			[]string{"outcome"},
		)),
		agentDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "foundry",
				Subsystem: "council",
				Name:      "agent_duration_seconds",
				Help:      "Time from an agent starting to its evaluation settling.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		)),
		synthesis: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foundry",
				Subsystem: "council",
				Name:      "synthesis_total",
				Help:      "Synthesis attempts by outcome.",
			},
			[]string{"outcome"},
		)),
		runDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "foundry",
				Subsystem: "council",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a council run from launch to synthesis.",
				Buckets:   []float64{5, 30, 60, 120, 300, 600, 900},
			},
			[]string{"outcome"},
		)),
		runsActive: register(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "foundry",
				Subsystem: "council",
				Name:      "runs_active",
				Help:      "Council runs currently in progress.",
			},
		)),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveAgent records one agent settling with outcome after d.
func (m *Metrics) ObserveAgent(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.agents.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.agentDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// ObserveSynthesis records a synthesis outcome.
func (m *Metrics) ObserveSynthesis(outcome string) {
	if m == nil {
		return
	}
	m.synthesis.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncActiveRuns marks a run as active.
func (m *Metrics) IncActiveRuns() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// DecActiveRuns marks a run as finished.
func (m *Metrics) DecActiveRuns() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}
