// Package metrics exposes Prometheus instrumentation for solver runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run results used as the "result" label.
const (
	ResultSuccess    = "success"
	ResultInvalid    = "invalid"
	ResultError      = "error"
	ResultInfeasible = "infeasible"
)

// Registry holds all Prometheus metrics for the solver service.
// Each Registry owns its own prometheus.Registry, so tests can create as many as
// they like without duplicate registration panics.
type Registry struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	CandidatesEvaluated prometheus.Counter
	ProblemAssets       prometheus.Gauge
	ActiveRuns          prometheus.Gauge
	EstimateCache       *prometheus.CounterVec
}

// NewRegistry creates and registers all metrics, plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qubo_runs_total",
				Help: "Total number of solver runs by result",
			},
			[]string{"result"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qubo_run_duration_seconds",
				Help:    "Wall-clock duration of solver runs in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"mode"},
		),

		CandidatesEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qubo_candidates_evaluated_total",
				Help: "Total number of binary selections scored",
			},
		),

		ProblemAssets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "qubo_problem_assets",
				Help: "Universe size of the most recent run",
			},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "qubo_active_runs",
				Help: "Number of runs currently being evaluated",
			},
		),

		EstimateCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qubo_estimate_cache_total",
				Help: "Market-data estimate lookups by outcome",
			},
			[]string{"outcome"},
		),
	}

	r.registry.MustRegister(
		r.RunsTotal,
		r.RunDuration,
		r.CandidatesEvaluated,
		r.ProblemAssets,
		r.ActiveRuns,
		r.EstimateCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// RunStarted marks a run as in flight.
func (r *Registry) RunStarted(assets int) {
	r.ActiveRuns.Inc()
	r.ProblemAssets.Set(float64(assets))
}

// RunFinished records the outcome of a run started with RunStarted.
func (r *Registry) RunFinished(mode, result string, candidates int, elapsed time.Duration) {
	r.ActiveRuns.Dec()
	r.RunsTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess || result == ResultInfeasible {
		r.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
		r.CandidatesEvaluated.Add(float64(candidates))
	}
}

// CacheLookup records an estimate cache hit or miss.
func (r *Registry) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.EstimateCache.WithLabelValues(outcome).Inc()
}

// Handler returns the /metrics endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
