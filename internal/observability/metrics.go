package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the agent/daemon.
type Metrics struct {
	registry      *prometheus.Registry
	Chains        *prometheus.CounterVec
	ChainDuration *prometheus.HistogramVec
	Hops          *prometheus.CounterVec
	SolverSteps   *prometheus.CounterVec
	ToolCalls     *prometheus.CounterVec
	Routes        *prometheus.CounterVec
	ModelFailures *prometheus.CounterVec
	ActiveChains  prometheus.Gauge
	Rejections    *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with agent collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	chains := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_chains_total",
		Help: "Finished quiz chains by result",
	}, []string{"result"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quizagent_chain_duration_seconds",
		Help:    "Quiz chain wall-clock duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
	}, []string{"result"})

	hops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_hops_total",
		Help: "Solver invocations by outcome (continue, done, retry)",
	}, []string{"outcome"})

	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_solver_steps_total",
		Help: "Perceive-think-act iterations by profile",
	}, []string{"profile"})

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_tool_calls_total",
		Help: "Tool invocations by tool and status",
	}, []string{"tool", "status"})

	routes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_route_decisions_total",
		Help: "Routing decisions by profile and source (model or fallback)",
	}, []string{"profile", "source"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_model_failures_total",
		Help: "Model failures by role and model",
	}, []string{"role", "model"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quizagent_active_chains",
		Help: "Quiz chains currently running",
	})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizagent_http_rejections_total",
		Help: "Rejected quiz requests by reason",
	}, []string{"reason"})

	reg.MustRegister(chains, durs, hops, steps, toolCalls, routes, modelFailures, active, rejections)

	return &Metrics{
		registry:      reg,
		Chains:        chains,
		ChainDuration: durs,
		Hops:          hops,
		SolverSteps:   steps,
		ToolCalls:     toolCalls,
		Routes:        routes,
		ModelFailures: modelFailures,
		ActiveChains:  active,
		Rejections:    rejections,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordChain records a finished chain and its duration.
func (m *Metrics) RecordChain(result string, duration time.Duration) {
	if m == nil {
		return
	}
	result = orUnknown(result)
	m.Chains.WithLabelValues(result).Inc()
	m.ChainDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// IncActiveChains increments the running chain gauge.
func (m *Metrics) IncActiveChains() {
	if m == nil {
		return
	}
	m.ActiveChains.Inc()
}

// DecActiveChains decrements the running chain gauge.
func (m *Metrics) DecActiveChains() {
	if m == nil {
		return
	}
	m.ActiveChains.Dec()
}

// RecordHop counts one solver invocation outcome.
func (m *Metrics) RecordHop(outcome string) {
	if m == nil {
		return
	}
	m.Hops.WithLabelValues(orUnknown(outcome)).Inc()
}

// RecordStep counts one solver iteration.
func (m *Metrics) RecordStep(profile string) {
	if m == nil {
		return
	}
	m.SolverSteps.WithLabelValues(orUnknown(profile)).Inc()
}

// RecordToolCall counts a tool invocation.
func (m *Metrics) RecordToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(orUnknown(tool), status).Inc()
}

// RecordRoute counts a routing decision.
func (m *Metrics) RecordRoute(profile, source string) {
	if m == nil {
		return
	}
	m.Routes.WithLabelValues(orUnknown(profile), orUnknown(source)).Inc()
}

// RecordModelFailure increments failure counter for a role/model selection.
func (m *Metrics) RecordModelFailure(role, model string) {
	if m == nil {
		return
	}
	m.ModelFailures.WithLabelValues(orUnknown(role), orUnknown(model)).Inc()
}

// RecordRejection counts a rejected inbound request.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(orUnknown(reason)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
